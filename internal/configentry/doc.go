// Package configentry stores the configuration entries created by config
// flows.
//
// An entry is one configured instance of an integration, such as one
// climate controller. Entries live in the config_entries SQLite table and
// are cached by a Registry. The Registry's OnCreate, OnUpdate and
// OnRemove listeners let integrations set up, reload and unload their
// entities as entries change.
//
// Usage:
//
//	reg := configentry.NewRegistry(configentry.NewSQLiteRepository(db.DB))
//	if err := reg.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	reg.OnCreate(func(ctx context.Context, e *configentry.Entry) error {
//	    return integration.SetupEntry(ctx, e)
//	})
package configentry
