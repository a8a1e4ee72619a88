package domain

import "path/filepath"

const (
	// DefaultCacheDirName is the default cache directory, relative to the project root.
	DefaultCacheDirName = ".synapse-cache"

	// EntriesDirName holds one file per cache key inside the cache directory.
	EntriesDirName = "entries"

	// IndexFileName is the optional cache manifest inside the cache directory.
	IndexFileName = "index.db"

	// EntryFileExt is the extension of a cache entry file.
	EntryFileExt = ".entry"

	// DefaultSourceDir is the default source root.
	DefaultSourceDir = "src"

	// DefaultOutputDir is the default output root.
	DefaultOutputDir = "dist"

	// ConfigFileYAML is the YAML project configuration file.
	ConfigFileYAML = "synapse.yaml"

	// ConfigFileYML is the alternate YAML project configuration file.
	ConfigFileYML = "synapse.yml"

	// ConfigFileTOML is the TOML project configuration file.
	ConfigFileTOML = "synapse.toml"

	// PackageManifest is the npm manifest consulted for declared externals.
	PackageManifest = "package.json"

	// SourceMapExt is appended to an emitted file name to name its map.
	SourceMapExt = ".map"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// ConfigFileNames lists the recognized project configuration files in lookup order.
func ConfigFileNames() []string {
	return []string{ConfigFileYAML, ConfigFileYML, ConfigFileTOML}
}

// EntriesPath returns the directory holding cache entry files.
func EntriesPath(cacheDir string) string {
	return filepath.Join(cacheDir, EntriesDirName)
}

// IndexPath returns the path of the cache manifest.
func IndexPath(cacheDir string) string {
	return filepath.Join(cacheDir, IndexFileName)
}
