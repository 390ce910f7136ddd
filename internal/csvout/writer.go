// Package csvout writes the row-oriented output files.
//
// Files open lazily on the first row so that a run which never records never
// creates empty files; the header is written at open time. Fields are
// comma-separated with no quoting: process names are basenames and the enum
// tokens contain no commas. Floats carry six fractional digits.
package csvout

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/randomizedcoder/go-present-mon/internal/stats"
)

// lazyFile opens its path on first use. An open failure disables the writer
// for the rest of the run; statistics collection continues regardless.
type lazyFile struct {
	path   string
	logger *slog.Logger

	file   *os.File
	failed bool
	rows   uint64
}

func (f *lazyFile) ensureOpen(header string) *os.File {
	if f.file != nil || f.failed || f.path == "" {
		return f.file
	}

	file, err := os.Create(f.path)
	if err != nil {
		f.failed = true
		if f.logger != nil {
			f.logger.Error("csv_open_failed", "path", f.path, "error", err)
		}
		return nil
	}
	f.file = file
	fmt.Fprintln(file, header)
	return file
}

func (f *lazyFile) close(eventsLost, buffersLost uint64) {
	if f.file == nil {
		return
	}
	// Trailer row so consumers can tell a lossy capture from a clean one.
	fmt.Fprintf(f.file, "EventsLost,BuffersLost\n%d,%d\n", eventsLost, buffersLost)
	f.file.Close()
	f.file = nil
}

// =============================================================================
// Present CSV
// =============================================================================

// PresentRow is one present CSV row, already reduced to output values.
type PresentRow struct {
	ProcessName      string
	ProcessID        uint32
	SwapChainAddress uint64
	Runtime          string
	SyncInterval     int32
	PresentFlags     uint32
	Dropped          bool
	TimeInSeconds    float64

	Frame stats.FrameStats

	SupportsTearing bool
	WasBatched      bool
	DwmNotified     bool
	PresentMode     string

	// QpcTime rides along for host export; not a CSV column.
	QpcTime uint64
}

// PresentWriter emits present rows for one output file.
type PresentWriter struct {
	lazyFile
	verbosity stats.Verbosity
}

// NewPresentWriter creates a writer that will open path on its first row.
// An empty path disables output entirely.
func NewPresentWriter(path string, verbosity stats.Verbosity, logger *slog.Logger) *PresentWriter {
	return &PresentWriter{
		lazyFile:  lazyFile{path: path, logger: logger},
		verbosity: verbosity,
	}
}

func presentHeader(verbosity stats.Verbosity) string {
	cols := []string{
		"ProcessName", "ProcessID", "SwapChainAddress", "Runtime",
		"SyncInterval", "PresentFlags",
	}
	if verbosity > stats.VerbositySimple {
		cols = append(cols, "AllowsTearing", "PresentMode", "WasBatched", "DwmNotified")
	}
	cols = append(cols, "Dropped", "TimeInSeconds", "msBetweenPresents")
	if verbosity > stats.VerbositySimple {
		cols = append(cols, "msBetweenDisplayChange")
	}
	cols = append(cols, "msInPresentApi")
	if verbosity > stats.VerbositySimple {
		cols = append(cols, "msUntilRenderComplete", "msUntilDisplayed")
	}
	return strings.Join(cols, ",")
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteRow appends one row. Dropped-row suppression and the at-least-one-
// prior-present rule are enforced by the caller; this only formats.
func (w *PresentWriter) WriteRow(row *PresentRow) {
	file := w.ensureOpen(presentHeader(w.verbosity))
	if file == nil {
		return
	}

	fmt.Fprintf(file, "%s,%d,0x%016X,%s,%d,%d",
		row.ProcessName, row.ProcessID, row.SwapChainAddress,
		row.Runtime, row.SyncInterval, row.PresentFlags)
	if w.verbosity > stats.VerbositySimple {
		fmt.Fprintf(file, ",%s,%s,%s,%s",
			boolField(row.SupportsTearing), row.PresentMode,
			boolField(row.WasBatched), boolField(row.DwmNotified))
	}
	fmt.Fprintf(file, ",%s,%.6f,%.6f",
		boolField(row.Dropped), row.TimeInSeconds, row.Frame.MsBetweenPresents)
	if w.verbosity > stats.VerbositySimple {
		fmt.Fprintf(file, ",%.6f", row.Frame.MsBetweenDisplayChange)
	}
	fmt.Fprintf(file, ",%.6f", row.Frame.MsInPresentApi)
	if w.verbosity > stats.VerbositySimple {
		fmt.Fprintf(file, ",%.6f,%.6f", row.Frame.MsUntilRenderComplete, row.Frame.MsUntilDisplayed)
	}
	fmt.Fprintln(file)

	w.rows++
}

// Rows returns the number of rows written so far.
func (w *PresentWriter) Rows() uint64 { return w.rows }

// Close writes the loss trailer and closes the file, if it ever opened.
func (w *PresentWriter) Close(eventsLost, buffersLost uint64) {
	w.close(eventsLost, buffersLost)
}

// =============================================================================
// LSR CSV
// =============================================================================

// LsrRow is one late-stage-reprojection CSV row.
type LsrRow struct {
	Application  string
	AppProcessID uint32
	LsrProcessID uint32
	AppFrameID   uint32

	TimeInSeconds     float64
	AppPresentDeltaMs float64
	AppPresentToLsrMs float64
	MsBetweenLsrs     float64

	AppMissed bool
	LsrMissed uint32

	AppSourceReleaseToLsrAcquireMs float64
	AppCpuRenderFrameMs            float64

	AppPredictionLatencyMs float64
	AppMispredictionMs     float64
	LsrCpuRenderFrameMs    float64

	LsrPredictionLatencyMs     float64
	LsrMotionToPhotonLatencyMs float64
	TimeUntilVsyncMs           float64
	LsrThreadWakeupToGpuEndMs  float64
	TotalWakeupErrorMs         float64

	ThreadWakeupToCpuRenderFrameStartMs  float64
	CpuRenderFrameStartToHeadPoseStartMs float64
	HeadPoseStartToHeadPoseStopMs        float64
	HeadPoseStopToInputLatchMs           float64
	InputLatchToGpuSubmissionMs          float64

	GpuSubmissionToGpuStartInMs float64
	GpuStartToGpuStopInMs       float64
	GpuStopToCopyStartInMs      float64
	CopyStartToCopyStopInMs     float64
	CopyStopToVsyncInMs         float64

	QpcTime uint64
}

// LsrWriter emits reprojection rows for one output file.
type LsrWriter struct {
	lazyFile
	verbosity stats.Verbosity
}

// NewLsrWriter creates a writer that will open path on its first row.
// An empty path disables output entirely.
func NewLsrWriter(path string, verbosity stats.Verbosity, logger *slog.Logger) *LsrWriter {
	return &LsrWriter{
		lazyFile:  lazyFile{path: path, logger: logger},
		verbosity: verbosity,
	}
}

func lsrHeader(verbosity stats.Verbosity) string {
	cols := []string{"Application", "ProcessID", "LsrProcessID"}
	if verbosity >= stats.VerbosityVerbose {
		cols = append(cols, "AppFrameId")
	}
	cols = append(cols, "TimeInSeconds")
	if verbosity > stats.VerbositySimple {
		cols = append(cols, "AppPresentDeltaMs", "AppPresentToLsrMs")
	}
	cols = append(cols, "msBetweenLsrs", "AppMissed", "LsrMissed")
	if verbosity >= stats.VerbosityVerbose {
		cols = append(cols, "AppSourceReleaseToLsrAcquireMs", "AppCpuRenderFrameMs")
	}
	cols = append(cols, "AppPredictionLatencyMs")
	if verbosity >= stats.VerbosityVerbose {
		cols = append(cols, "AppMispredictionMs", "LsrCpuRenderFrameMs")
	}
	cols = append(cols,
		"LsrPredictionLatencyMs", "LsrMotionToPhotonLatencyMs",
		"TimeUntilVsyncMs", "LsrThreadWakeupToGpuEndMs", "TotalWakeupErrorMs")
	if verbosity >= stats.VerbosityVerbose {
		cols = append(cols,
			"LsrThreadWakeupToCpuRenderFrameStartInMs",
			"CpuRenderFrameStartToHeadPoseCallbackStartInMs",
			"HeadPoseCallbackStartToHeadPoseCallbackStopInMs",
			"HeadPoseCallbackStopToInputLatchInMs",
			"InputLatchToGpuSubmissionInMs")
	}
	cols = append(cols,
		"GpuSubmissionToGpuStartInMs", "GpuStartToGpuStopInMs",
		"GpuStopToCopyStartInMs", "CopyStartToCopyStopInMs", "CopyStopToVsyncInMs")
	return strings.Join(cols, ",")
}

// WriteRow appends one row.
func (w *LsrWriter) WriteRow(row *LsrRow) {
	file := w.ensureOpen(lsrHeader(w.verbosity))
	if file == nil {
		return
	}

	fmt.Fprintf(file, "%s,%d,%d", row.Application, row.AppProcessID, row.LsrProcessID)
	if w.verbosity >= stats.VerbosityVerbose {
		fmt.Fprintf(file, ",%d", row.AppFrameID)
	}
	fmt.Fprintf(file, ",%.6f", row.TimeInSeconds)
	if w.verbosity > stats.VerbositySimple {
		fmt.Fprintf(file, ",%.6f,%.6f", row.AppPresentDeltaMs, row.AppPresentToLsrMs)
	}
	fmt.Fprintf(file, ",%.6f,%s,%d", row.MsBetweenLsrs, boolField(row.AppMissed), row.LsrMissed)
	if w.verbosity >= stats.VerbosityVerbose {
		fmt.Fprintf(file, ",%.6f,%.6f", row.AppSourceReleaseToLsrAcquireMs, row.AppCpuRenderFrameMs)
	}
	fmt.Fprintf(file, ",%.6f", row.AppPredictionLatencyMs)
	if w.verbosity >= stats.VerbosityVerbose {
		fmt.Fprintf(file, ",%.6f,%.6f", row.AppMispredictionMs, row.LsrCpuRenderFrameMs)
	}
	fmt.Fprintf(file, ",%.6f,%.6f,%.6f,%.6f,%.6f",
		row.LsrPredictionLatencyMs, row.LsrMotionToPhotonLatencyMs,
		row.TimeUntilVsyncMs, row.LsrThreadWakeupToGpuEndMs, row.TotalWakeupErrorMs)
	if w.verbosity >= stats.VerbosityVerbose {
		fmt.Fprintf(file, ",%.6f,%.6f,%.6f,%.6f,%.6f",
			row.ThreadWakeupToCpuRenderFrameStartMs,
			row.CpuRenderFrameStartToHeadPoseStartMs,
			row.HeadPoseStartToHeadPoseStopMs,
			row.HeadPoseStopToInputLatchMs,
			row.InputLatchToGpuSubmissionMs)
	}
	fmt.Fprintf(file, ",%.6f,%.6f,%.6f,%.6f,%.6f\n",
		row.GpuSubmissionToGpuStartInMs, row.GpuStartToGpuStopInMs,
		row.GpuStopToCopyStartInMs, row.CopyStartToCopyStopInMs, row.CopyStopToVsyncInMs)

	w.rows++
}

// Rows returns the number of rows written so far.
func (w *LsrWriter) Rows() uint64 { return w.rows }

// Close writes the loss trailer and closes the file, if it ever opened.
func (w *LsrWriter) Close(eventsLost, buffersLost uint64) {
	w.close(eventsLost, buffersLost)
}

// ProcessPath derives the per-process file path used in multi-csv mode:
// "presents.csv" + "game.exe" -> "presents-game.exe.csv".
func ProcessPath(basePath, moduleName string) string {
	if basePath == "" {
		return ""
	}
	ext := ""
	stem := basePath
	if i := strings.LastIndex(basePath, "."); i > strings.LastIndex(basePath, "/") {
		stem, ext = basePath[:i], basePath[i:]
	}
	return stem + "-" + moduleName + ext
}
