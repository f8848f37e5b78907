package chrono

import "time"

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl loads the given IANA timezone, an empty name means the
// local timezone.
func NewStandardImpl(timezone string) (StandardImpl, error) {
	if timezone == "" {
		return StandardImpl{location: time.Local}, nil
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl is an API whose clock only moves when told to.
type FixedImpl struct {
	Time time.Time
}

func (f *FixedImpl) Now() time.Time {
	return f.Time
}

func (f *FixedImpl) Location() *time.Location {
	return f.Time.Location()
}

func (f *FixedImpl) Advance(d time.Duration) {
	f.Time = f.Time.Add(d)
}
