package xstream

// Delivery is what a consumer handler receives: either Received or Empty.
type Delivery interface {
	// Consumer is the name the engine knows this consumer by.
	Consumer() string
	delivery()
}

// Received is an entry handed to the handler. It stays pending until the
// handler returns without error.
type Received struct {
	Entry
	Stream       string
	Group        string
	ConsumerName string
	// Claimed is set when the entry was taken over from a stale consumer.
	Claimed bool
}

func (r Received) Consumer() string { return r.ConsumerName }
func (Received) delivery()          {}

// Empty means no entry arrived within the block window.
type Empty struct {
	Stream       string
	Group        string
	ConsumerName string
}

func (e Empty) Consumer() string { return e.ConsumerName }
func (Empty) delivery()          {}

var (
	_ Delivery = Received{}
	_ Delivery = Empty{}
)
