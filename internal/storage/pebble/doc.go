// Package pebblestore wraps Pebble with an fsync policy, one-op writes,
// prefix scans and a latency hook. floq uses it to keep dead-lettered
// messages across restarts; live queue state never touches disk.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set(ctx, []byte("k"), []byte("v"))
//	_ = db.ScanPrefix([]byte("dlq/"), false, func(k, v []byte) bool { return true })
package pebblestore
