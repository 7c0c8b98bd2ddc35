package symstat

const (
	// MinBatchSize and MaxBatchSize bound a single AppendBatch command.
	MinBatchSize = 1
	MaxBatchSize = 10_000

	// StatusInvalidBatchSize and StatusBatchAdded are the two fixed
	// strings an AppendBatch command can reply with. The core never
	// returns any other status.
	StatusInvalidBatchSize = "Invalid batch size"
	StatusBatchAdded       = "Batch added successfully"
)

// Command is the payload half of an (Symbol, Command) envelope
// submitted to the Dispatcher. It is a closed set: AppendBatchCommand
// and GetStatsCommand are the only implementations.
type Command interface {
	isCommand()
}

// AppendBatchCommand asks a symbol's worker to extend its observation
// stream with Values, in order, and reports the outcome on Reply.
//
// Reply receives exactly one of StatusInvalidBatchSize (when
// len(Values) is 0 or greater than MaxBatchSize; the stream is left
// unmodified) or StatusBatchAdded.
type AppendBatchCommand struct {
	Values []float64
	Reply  chan<- string
}

func (AppendBatchCommand) isCommand() {}

// GetStatsCommand asks a symbol's worker for the statistics over its
// most recent 10^K observations. Reply receives a zero-valued Stats
// when the symbol has no observations, or the window is empty.
type GetStatsCommand struct {
	K     int
	Reply chan<- Stats
}

func (GetStatsCommand) isCommand() {}

// Envelope pairs a Command with the Symbol it targets. This is the
// unit of submission accepted by a Dispatcher's inbound channel.
type Envelope struct {
	Symbol  Symbol
	Command Command
}
