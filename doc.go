// Package vitalsbot exposes a personal health-data PostgreSQL database to a
// single-user Telegram bot, strictly read-only and with zero hand-configured
// table or column names.
//
// The engine auto-detects which physical schema backs each logical domain
// (weight, steps, heart, sleep): at startup every domain's candidate tables
// and columns are matched against a cached schema snapshot, first match
// wins. A domain whose candidates resolve nowhere is simply unavailable —
// that is a state, not an error.
//
// Safety is layered. User-originated raw SQL goes through a token-scanner
// validator (internal/sqlguard) with stable rejection codes; everything that
// reaches the pool is parsed again with PostgreSQL's own parser
// (internal/readonly) and must be a single SELECT; the session itself runs
// with default_transaction_read_only on, and every execution happens inside
// an explicit read-only transaction.
//
//	engine, err := vitalsbot.New(ctx, connString, vitalsbot.Config{}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	statuses, _ := engine.Resolver().ResolveAll(ctx)
//
//	vq, err := sqlguard.Validate("SELECT * FROM weight", 100)
//	if err == nil {
//		result, _ := engine.Execute(ctx, vq)
//		_ = result
//	}
//
// Nothing in this package is fatal to the process: connectivity loss,
// schema drift, and pool exhaustion all degrade to typed errors that the
// transport layer turns into messages.
package vitalsbot
