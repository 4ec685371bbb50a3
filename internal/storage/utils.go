package storage

// InitStore opens the database and brings its schema up to date.
func InitStore(driver, dsn string) (*SQLStore, error) {
	if err := Migrate(driver, dsn); err != nil {
		return nil, err
	}
	store, err := NewSQLStore(driver, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}
