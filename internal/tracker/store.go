package tracker

import (
	"github.com/google/uuid"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
)

// Placeholder values shown until the first refresh completes.
const (
	PlaceholderTitle  = "Loading…"
	PlaceholderAuthor = "…"
)

// Store is the ordered collection of tracked records, newest first.
//
// Store is not safe for concurrent use; the daemon event loop owns it.
type Store struct {
	records []*Record
	newID   func() string
}

func NewStore() *Store {
	return &Store{newID: uuid.NewString}
}

// Load replaces the store contents with previously persisted records,
// dropping duplicates of (repo, number) and assigning missing ids.
func (s *Store) Load(records []Record) {
	s.records = s.records[:0]
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		rec := r.clone()
		if rec.ID == "" {
			rec.ID = s.newID()
		}
		rec.RunID = nil
		rec.LastError = ""
		rec.IsLoading = false
		rec.issued, rec.applied = 0, 0
		s.records = append(s.records, &rec)
	}
}

// Add inserts a placeholder record at the front. It returns false without
// changes when (repo, number) is already tracked.
func (s *Store) Add(repo string, number int) (Record, bool) {
	for _, r := range s.records {
		if r.Repo == repo && r.Number == number {
			return Record{}, false
		}
	}
	rec := &Record{
		ID:        s.newID(),
		Repo:      repo,
		Number:    number,
		Title:     PlaceholderTitle,
		Author:    PlaceholderAuthor,
		State:     StateOpen,
		IsLoading: true,
	}
	s.records = append([]*Record{rec}, s.records...)
	return rec.clone(), true
}

// Remove deletes a record. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) bool {
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) find(id string) *Record {
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Get returns a copy of a record.
func (s *Store) Get(id string) (Record, bool) {
	r := s.find(id)
	if r == nil {
		return Record{}, false
	}
	return r.clone(), true
}

// Begin marks a record as loading and returns the sequence number that the
// resulting Patch must carry.
func (s *Store) Begin(id string) (uint64, bool) {
	r := s.find(id)
	if r == nil {
		return 0, false
	}
	r.issued++
	r.IsLoading = true
	return r.issued, true
}

// Merge applies a patch. It returns false when the record no longer exists or
// when the patch is older than one already applied.
func (s *Store) Merge(id string, p Patch) bool {
	r := s.find(id)
	if r == nil {
		return false
	}
	if p.Seq != 0 {
		if p.Seq < r.applied {
			return false
		}
		r.applied = p.Seq
	}

	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Author != nil {
		r.Author = *p.Author
	}
	if p.State != nil {
		r.State = *p.State
	}
	if p.Jobs != nil {
		r.Jobs = append([]cistatus.Job{}, (*p.Jobs)...)
	}
	if p.LastUpdated != nil {
		r.LastUpdated = *p.LastUpdated
	}
	if p.Additions != nil {
		v := *p.Additions
		r.Additions = &v
	}
	if p.Deletions != nil {
		v := *p.Deletions
		r.Deletions = &v
	}
	if p.RunID != nil {
		if *p.RunID == 0 {
			r.RunID = nil
		} else {
			v := *p.RunID
			r.RunID = &v
		}
	}
	if p.Err != nil {
		r.LastError = p.Err.Error()
	} else {
		r.LastError = ""
	}
	r.IsLoading = false
	return true
}

// List returns copies of all records in display order.
func (s *Store) List() []Record {
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

func (s *Store) Len() int { return len(s.records) }

// AnyRunning reports whether any record's derived status is running.
func (s *Store) AnyRunning() bool {
	for _, r := range s.records {
		if r.Status() == cistatus.StatusRunning {
			return true
		}
	}
	return false
}

// WithStatus returns copies of the records whose derived status is st.
func (s *Store) WithStatus(st cistatus.Status) []Record {
	var out []Record
	for _, r := range s.records {
		if r.Status() == st {
			out = append(out, r.clone())
		}
	}
	return out
}

// Group is the records of one repository.
type Group struct {
	Repo    string
	Records []Record
}

// GroupByRepo groups records by repository, ordering groups by first
// appearance. The result is a view and is not stored.
func GroupByRepo(records []Record) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, r := range records {
		i, ok := index[r.Repo]
		if !ok {
			i = len(groups)
			index[r.Repo] = i
			groups = append(groups, Group{Repo: r.Repo})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}
