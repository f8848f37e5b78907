package extract

// Keys names the fields the cascade looks for.
type Keys struct {
	Wrapper string `json:"wrapper"`
	Name    string `json:"name"`
	Growth  string `json:"growth"`
	Rows    string `json:"rows"`
}

func DefaultKeys() Keys {
	return Keys{
		Wrapper: "person",
		Name:    "fullName",
		Growth:  "growth",
		Rows:    "rows",
	}
}

// Spans are the maximum distances, in characters, between paired fields.
type Spans struct {
	// between the wrapper object and the name nested in it
	Wrapper int `json:"wrapper"`
	// between name and growth anywhere in the document
	Long int `json:"long"`
	// between name and growth inside a single list row
	Row int `json:"row"`
}

func DefaultSpans() Spans {
	return Spans{
		Wrapper: 50000,
		Long:    50000,
		Row:     2000,
	}
}

func (k Keys) withDefaults() Keys {
	def := DefaultKeys()
	if k.Wrapper == "" {
		k.Wrapper = def.Wrapper
	}
	if k.Name == "" {
		k.Name = def.Name
	}
	if k.Growth == "" {
		k.Growth = def.Growth
	}
	if k.Rows == "" {
		k.Rows = def.Rows
	}
	return k
}

func (s Spans) withDefaults() Spans {
	def := DefaultSpans()
	if s.Wrapper <= 0 {
		s.Wrapper = def.Wrapper
	}
	if s.Long <= 0 {
		s.Long = def.Long
	}
	if s.Row <= 0 {
		s.Row = def.Row
	}
	return s
}

// Cascade builds the matchers in precedence order. Earlier matchers win when
// the same name is found with different growth values, so the order must not
// change.
//
//  1. wrapper object -> name -> growth
//  2. growth -> wrapper object -> name
//  3. name -> growth
//  4. growth -> name
//  5. name -> growth inside the first rows list, with the short row span
//
// Zero keys and non-positive spans fall back to their defaults.
func Cascade(keys Keys, spans Spans) []Matcher {
	keys = keys.withDefaults()
	spans = spans.withDefaults()

	wrapper := ObjectField(keys.Wrapper)
	name := NameField(keys.Name)
	growth := GrowthField(keys.Growth)

	nested := Gap{Min: 0, Max: spans.Wrapper}
	long := Gap{Min: 1, Max: spans.Long}
	row := Gap{Min: 1, Max: spans.Row}

	return []Matcher{
		Sequence{Steps: []Step{
			{Field: wrapper},
			{Field: name, Gap: nested},
			{Field: growth, Gap: long},
		}},
		Sequence{Steps: []Step{
			{Field: growth},
			{Field: wrapper, Gap: long},
			{Field: name, Gap: nested},
		}},
		Sequence{Steps: []Step{
			{Field: name},
			{Field: growth, Gap: long},
		}},
		Sequence{Steps: []Step{
			{Field: growth},
			{Field: name, Gap: long},
		}},
		Within{
			List: ListField(keys.Rows),
			Inner: Sequence{Steps: []Step{
				{Field: name},
				{Field: growth, Gap: row},
			}},
		},
	}
}
