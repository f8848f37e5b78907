package db

type Run struct {
	ID      int64
	Time    int64
	Sources string
	Records int64
}

type Record struct {
	RunID  int64
	Idx    int64
	Name   string
	Growth int64
}
