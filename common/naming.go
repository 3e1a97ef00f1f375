package common

// ArchiveExt is the extension of the scene archives delivered by EROS
const ArchiveExt = ".zip"

// ArchiveFileName returns the default local file name for a scene archive,
// used when the server does not provide one.
func ArchiveFileName(entityID string) string {
	return entityID + ArchiveExt
}
