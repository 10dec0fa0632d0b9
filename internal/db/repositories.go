package db

// Repositories provides access to all database repositories
type Repositories struct {
	State *StateEntryRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		State: NewStateEntryRepository(db),
	}
}
