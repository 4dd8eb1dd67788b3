package archive

// Packer defines the interface for chapter archive packaging.
type Packer interface {
	// Pack writes the given page files into an archive at archivePath and,
	// when removeSources is set, deletes the sources and their directory
	// afterwards.
	Pack(archivePath string, pageFiles []string, removeSources bool) error
}
