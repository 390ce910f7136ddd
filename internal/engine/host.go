package engine

import "time"

// ConsoleData is one swap chain's console snapshot, handed to an embedding
// host each tick.
type ConsoleData struct {
	ProcessName      string
	ProcessID        uint32
	SwapChainAddress uint64
	Runtime          string
	SyncInterval     int32
	PresentFlags     uint32
	MsPerFrame       float64
	FPS              float64
	WallClockTime    time.Time
}

// CsvData mirrors a present CSV row for an embedding host, with the raw
// counter value and wall-clock stamp added.
type CsvData struct {
	ProcessName      string
	ProcessID        uint32
	SwapChainAddress uint64
	Runtime          string
	SyncInterval     int32
	PresentFlags     uint32

	SupportsTearing bool
	PresentMode     string
	WasBatched      bool
	DwmNotified     bool

	Dropped       bool
	TimeInSeconds float64

	MsBetweenPresents      float64
	MsBetweenDisplayChange float64
	MsInPresentApi         float64
	MsUntilRenderComplete  float64
	MsUntilDisplayed       float64

	QpcTime       uint64
	WallClockTime time.Time
}

// HostExport is the capability set an embedding host provides to receive the
// engine's output.
//
// Both methods are invoked synchronously on the merger thread; the engine
// assumes nothing about the host's threading, so hosts must return promptly.
// Data is passed by value: the host receives a read-only snapshot.
type HostExport interface {
	// NotifyConsoleSnapshot delivers one per-chain console summary.
	NotifyConsoleSnapshot(data ConsoleData)

	// NotifyCsvRow delivers one present row, in emission order, exactly once
	// per row that passes the recording rules.
	NotifyCsvRow(data CsvData)
}
