// Package journal keeps a per-request record of what the proxy did.
//
// Each inbound call produces one Record: method, path, the status sent to the
// caller, how many upstream pages were fetched, how many entities were
// emitted, token renewals and timing. Records are queued by a Recorder and
// written asynchronously to a Storage backend (see the storage subpackage),
// so a slow disk never delays a response. When the buffer is full the record
// is dropped and counted.
//
// The retention subpackage deletes old records on a cron schedule and the
// export subpackage renders records as JSON or CSV for the
// "connect journal list" command.
//
// Basic usage:
//
//	store, err := storage.Open(cfg.Journal)
//	if err != nil {
//	    return err
//	}
//	rec := journal.NewRecorder(journal.RecorderConfig{Storage: store})
//	defer rec.Close()
//
//	_ = rec.Record(&journal.Record{Method: "GET", Path: "companies", Status: 200})
package journal
