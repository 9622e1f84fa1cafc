package assets

// Loader turns a shader file into SPIR-V words.
type Loader interface {
	Load(path string) ([]uint32, error)
}
