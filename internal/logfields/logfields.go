package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyProject    = "project"
	KeyVersion    = "version"
	KeyLabel      = "label"
	KeyRef        = "ref"
	KeyStage      = "stage"
	KeyTask       = "task_index"
	KeyWorkers    = "workers"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr          { return slog.String(KeyRunID, id) }
func Project(p string) slog.Attr         { return slog.String(KeyProject, p) }
func Version(v string) slog.Attr         { return slog.String(KeyVersion, v) }
func Label(l string) slog.Attr           { return slog.String(KeyLabel, l) }
func Ref(r string) slog.Attr             { return slog.String(KeyRef, r) }
func Stage(name string) slog.Attr        { return slog.String(KeyStage, name) }
func Task(i int) slog.Attr               { return slog.Int(KeyTask, i) }
func Workers(n int) slog.Attr            { return slog.Int(KeyWorkers, n) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr             { return slog.String(KeyURL, u) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
