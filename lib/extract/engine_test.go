package extract

import (
	"fmt"
	"growthwatch/lib/textutil"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func requireRecords(t testing.TB, expected, actual []Record) {
	t.Helper()
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Fatalf("records mismatch (-expected +actual):\n%s", diff)
	}
}

func TestExtract(t *testing.T) {
	filler := strings.Repeat(`"other":"x",`, 100)

	testCases := []struct {
		name     string
		input    string
		expected []Record
	}{
		{
			name:     "empty",
			input:    "",
			expected: []Record{},
		},
		{
			name:     "no keys",
			input:    `<html><body><p>nothing to see</p></body></html>`,
			expected: []Record{},
		},
		{
			name:     "negative growth",
			input:    `"fullName":"Omar","growth":-12`,
			expected: []Record{{Name: "Omar", Growth: -12}},
		},
		{
			name:     "growth before name",
			input:    `"growth":7,` + filler + `"fullName":"Erik"`,
			expected: []Record{{Name: "Erik", Growth: 7}},
		},
		{
			name:     "name before growth",
			input:    `"fullName":"Erik",` + filler + `"growth":7`,
			expected: []Record{{Name: "Erik", Growth: 7}},
		},
		{
			name:  "row list",
			input: `"rows":[{"fullName":"Mia","growth":3},{"fullName":"Leo","growth":-2}]`,
			expected: []Record{
				{Name: "Mia", Growth: 3},
				{Name: "Leo", Growth: -2},
			},
		},
		{
			name:     "first match wins",
			input:    `"fullName":"Anna","growth":5,` + strings.Repeat(filler, 10) + `"fullName":"Anna","growth":9`,
			expected: []Record{{Name: "Anna", Growth: 5}},
		},
		{
			name:     "duplicate keys ignore case",
			input:    `"fullName":"anna","growth":1,"fullName":"ANNA","growth":2`,
			expected: []Record{{Name: "anna", Growth: 1}},
		},
		{
			name:     "name is trimmed",
			input:    `"fullName":"  Bo ","growth":3`,
			expected: []Record{{Name: "Bo", Growth: 3}},
		},
		{
			name:     "blank name dropped",
			input:    `"fullName":"   ","growth":3`,
			expected: []Record{},
		},
		{
			name:     "out of range growth dropped",
			input:    `"fullName":"Big","growth":99999999999999999999`,
			expected: []Record{},
		},
		{
			name:     "whitespace around colons",
			input:    "\"fullName\" :\n \"Ivy\" , \"growth\"\t: 11",
			expected: []Record{{Name: "Ivy", Growth: 11}},
		},
		{
			name:     "wrapped name before growth",
			input:    `"person":{"id":"p1","fullName":"Ida","club":{"name":"x"}},"stats":{"growth":4}`,
			expected: []Record{{Name: "Ida", Growth: 4}},
		},
		{
			name:     "growth before wrapped name",
			input:    `"growth":6,"person":{"fullName":"Noor"}`,
			expected: []Record{{Name: "Noor", Growth: 6}},
		},
		{
			name: "wrapped match beats bare match",
			input: `"fullName":"Ida","growth":8,` + filler +
				`"person":{"fullName":"Ida"},"growth":4`,
			expected: []Record{{Name: "Ida", Growth: 4}},
		},
		{
			name:     "html entity escaped",
			input:    `&quot;fullName&quot;:&quot;Tom&quot;,&quot;growth&quot;:4`,
			expected: []Record{{Name: "Tom", Growth: 4}},
		},
		{
			name:     "backslash escaped",
			input:    `\"fullName\":\"Tom\",\"growth\":4`,
			expected: []Record{{Name: "Tom", Growth: 4}},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			requireRecords(t, test.expected, Extract(test.input))
		})
	}
}

const flightPage = `<script>self.__next_f.push([1,"7:[\"$\",\"div\",null,{\"children\":[` +
	`{\"rank\":1,\"person\":{\"id\":\"a1\",\"fullName\":\"Liv Holm\",\"avatar\":{\"url\":\"/a.png\"}},\"stats\":{\"points\":40,\"growth\":12}},` +
	`{\"rank\":2,\"person\":{\"id\":\"b2\",\"fullName\":\"Kai Berg\",\"avatar\":null},\"stats\":{\"points\":31,\"growth\":-3}}` +
	`]}]\n"])</script>` +
	`<div data-props="{&quot;rows&quot;:[{&quot;fullName&quot;:&quot;Liv Holm&quot;,&quot;growth&quot;:99},` +
	`{&quot;fullName&quot;:&quot;Sol Dahl&quot;,&quot;growth&quot;:0}]}"></div>`

func TestExtractMixedPage(t *testing.T) {
	records := Extract(flightPage)
	requireRecords(t, []Record{
		{Name: "Liv Holm", Growth: 12},
		{Name: "Kai Berg", Growth: -3},
		{Name: "Sol Dahl", Growth: 0},
	}, records)
}

func TestExtractAll(t *testing.T) {
	records := ExtractAll(
		`"fullName":"Eva","growth":1`,
		`"fullName":"eva","growth":2,"other":true,"fullName":"Max","growth":3`,
		"",
	)
	requireRecords(t, []Record{
		{Name: "Eva", Growth: 1},
		{Name: "Max", Growth: 3},
	}, records)
}

func TestSpanBoundary(t *testing.T) {
	pair := func(gap int) string {
		return `"fullName":"Ada"` + strings.Repeat("x", gap) + `"growth":2`
	}

	requireRecords(t, []Record{{Name: "Ada", Growth: 2}}, Extract(pair(DefaultSpans().Long)))
	requireRecords(t, []Record{}, Extract(pair(DefaultSpans().Long+1)))

	engine := NewEngine(Cascade(Keys{}, Spans{Long: 10})...)
	requireRecords(t, []Record{{Name: "Ada", Growth: 2}}, engine.Extract(pair(10)))
	requireRecords(t, []Record{}, engine.Extract(pair(11)))

	// the row list has its own, larger bound
	rows := `"rows":[{"fullName":"Mia",` + strings.Repeat(" ", 20) + `"growth":3}]`
	requireRecords(t, []Record{{Name: "Mia", Growth: 3}}, engine.Extract(rows))
	short := NewEngine(Cascade(Keys{}, Spans{Long: 10, Row: 15})...)
	requireRecords(t, []Record{}, short.Extract(rows))
}

func TestSpanCountsCharacters(t *testing.T) {
	pair := func(gap int) string {
		return `"fullName":"Ada",` + strings.Repeat("ø", gap-1) + `"growth":2`
	}

	requireRecords(t, []Record{{Name: "Ada", Growth: 2}}, Extract(pair(30000)))
	requireRecords(t, []Record{{Name: "Ada", Growth: 2}}, Extract(pair(DefaultSpans().Long)))
	requireRecords(t, []Record{}, Extract(pair(DefaultSpans().Long+1)))

	engine := NewEngine(Cascade(Keys{}, Spans{Long: 10})...)
	requireRecords(t, []Record{{Name: "Ada", Growth: 2}}, engine.Extract(pair(10)))
	requireRecords(t, []Record{}, engine.Extract(pair(11)))
}

func TestWrapperSpanBoundary(t *testing.T) {
	matchers := Cascade(Keys{}, Spans{Wrapper: 10, Long: 100})
	nested := func(gap int) string {
		return `"growth":6,"person":{` + strings.Repeat("æ", gap) + `"fullName":"Noor","growth":4`
	}

	testCases := []struct {
		name     string
		strategy int
		gap      int
		expected []Candidate
	}{
		{name: "wrapper then name at bound", strategy: 0, gap: 10, expected: []Candidate{{Name: "Noor", Growth: "4"}}},
		{name: "wrapper then name past bound", strategy: 0, gap: 11},
		{name: "growth then wrapper at bound", strategy: 1, gap: 10, expected: []Candidate{{Name: "Noor", Growth: "6"}}},
		{name: "growth then wrapper past bound", strategy: 1, gap: 11},
		{name: "bare name ignores wrapper", strategy: 2, gap: 11, expected: []Candidate{{Name: "Noor", Growth: "4"}}},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, matchers[test.strategy].FindPairs(nested(test.gap)))
		})
	}

	engine := NewEngine(matchers...)
	requireRecords(t, []Record{{Name: "Noor", Growth: 4}}, engine.Extract(nested(11)))
}

func TestWrappedGrowthBeatsBareGrowth(t *testing.T) {
	// the bare name has its growth in front of it only, the wrapped one is
	// preceded by a different growth
	text := `"growth":1,"fullName":"Noor",` + strings.Repeat("x", 30) +
		`"growth":6,"person":{"fullName":"Noor"}`
	engine := NewEngine(Cascade(Keys{}, Spans{Long: 20})...)

	requireRecords(t, []Record{{Name: "Noor", Growth: 6}}, engine.Extract(text))

	bareOnly := NewEngine(Cascade(Keys{}, Spans{Long: 20})[3])
	requireRecords(t, []Record{{Name: "Noor", Growth: 1}}, bareOnly.Extract(text))
}

func TestCustomKeys(t *testing.T) {
	engine := NewEngine(Cascade(Keys{Name: "displayName", Growth: "delta"}, Spans{})...)
	requireRecords(t, []Record{{Name: "Uma", Growth: 5}}, engine.Extract(`"displayName":"Uma","delta":5,"fullName":"Not","growth":1`))
}

func TestEngineWithoutMatchers(t *testing.T) {
	requireRecords(t, []Record{}, NewEngine().Extract(`"fullName":"Uma","growth":5`))
}

var extractFragments = []string{
	`"fullName":"Anna"`, `"fullName":"anna"`, `"fullName":"Bo"`, `"fullName":" "`,
	`"growth":1`, `"growth":-4`, `"growth":x`, `"person":{`, `"rows":[`, `]`, `}`,
	`,`, `\"`, `&quot;`, `xxxxxxxx`, `"fullName":"`, `"growth":`,
}

func TestExtractProperties(t *testing.T) {
	rndm := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		input := randomSoup(rndm, extractFragments, rndm.Intn(60))

		first := Extract(input)
		second := Extract(input)
		require.Equal(t, first, second, "input: %q", input)

		seen := map[string]bool{}
		for _, r := range first {
			key := textutil.Key(r.Name)
			require.False(t, seen[key], "duplicate %q in %q", r.Name, input)
			seen[key] = true
			require.NotEmpty(t, strings.TrimSpace(r.Name))
		}

		require.Equal(t, first, Extract(Normalize(input)), "input: %q", input)
	}
}

func largeInput(size int) string {
	var sb strings.Builder
	for sb.Len() < size {
		fmt.Fprintf(&sb, `"person":{"fullName":"p%d"},"fullName":"q%d",`, sb.Len(), sb.Len())
	}
	sb.WriteString(`"growth":1`)
	return sb.String()
}

func timeExtract(t *testing.T, text string) time.Duration {
	best := time.Duration(0)
	for i := 0; i < 2; i++ {
		start := time.Now()
		records := Extract(text)
		elapsed := time.Since(start)
		require.NotEmpty(t, records)
		if best == 0 || elapsed < best {
			best = elapsed
		}
	}
	return best
}

func TestExtractLargeInput(t *testing.T) {
	if testing.Short() {
		t.Skip("large input")
	}

	small := timeExtract(t, largeInput(1_000_000))
	large := timeExtract(t, largeInput(4_000_000))

	// four times the input must cost far less than sixteen times the time
	ratio := float64(large) / float64(small)
	require.Less(t, ratio, 10.0, "1MB took %s, 4MB took %s", small, large)
	require.Less(t, large, 30*time.Second)
}

func FuzzExtract(f *testing.F) {
	f.Add(`"fullName":"Omar","growth":-12`)
	f.Add(`"rows":[{"fullName":"Mia","growth":3}]`)
	f.Add(flightPage)
	f.Fuzz(func(t *testing.T, input string) {
		seen := map[string]bool{}
		for _, r := range Extract(input) {
			key := textutil.Key(r.Name)
			if seen[key] {
				t.Fatalf("duplicate record %q", r.Name)
			}
			seen[key] = true
		}
	})
}
