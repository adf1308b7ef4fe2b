package query

// Defaults applied when Options fields are zero or, for Temperature, nil.
const (
	DefaultTopK        = 5
	DefaultTemperature = float32(0.3)
	DefaultMaxTokens   = 2000
)

// Options are process-wide pipeline parameters. They are not settable per call.
type Options struct {
	Model       string
	TopK        int
	Temperature *float32
	MaxTokens   int
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}
