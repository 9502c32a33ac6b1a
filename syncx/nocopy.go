package syncx

// noCopy embeds into a struct to make `go vet -copylocks` flag accidental
// copies of it; it has no runtime effect.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
