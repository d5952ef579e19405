package domain

// Block is the subset of a block header the watcher needs.
type Block struct {
	Number     uint64
	Hash       string
	ParentHash string
	Timestamp  uint64
}
