package domain

import "go.trai.ch/zerr"

var (
	// ErrConfiguration is the root of every configuration-level failure.
	// It is the only error category that aborts a whole batch.
	ErrConfiguration = zerr.New("invalid compiler configuration")

	// ErrUnknownModuleFormat is returned when module_format names no known format.
	ErrUnknownModuleFormat = zerr.New("unknown module format, expected esnext, commonjs, amd, umd or systemjs")

	// ErrUnknownTargetLanguage is returned when target_language is anything but javascript.
	ErrUnknownTargetLanguage = zerr.New("unknown target language, expected javascript")

	// ErrInvalidParallelism is returned when max_parallelism is neither "auto" nor a positive integer.
	ErrInvalidParallelism = zerr.New("max_parallelism must be \"auto\" or a positive integer")

	// ErrUnknownJSXRuntime is returned when jsx.runtime is neither classic nor automatic.
	ErrUnknownJSXRuntime = zerr.New("unknown jsx runtime, expected classic or automatic")

	// ErrMissingJSXFactory is returned when the classic JSX runtime has no factory.
	ErrMissingJSXFactory = zerr.New("jsx factory must be set when using the classic runtime")

	// ErrMissingJSXImportSource is returned when the automatic JSX runtime has no import source.
	ErrMissingJSXImportSource = zerr.New("jsx import_source must be set when using the automatic runtime")

	// ErrDecoratorMetadataWithoutDecorators is returned when decorator metadata is requested alone.
	ErrDecoratorMetadataWithoutDecorators = zerr.New("emit_decorator_metadata requires experimental_decorators")

	// ErrInvalidPathAlias is returned when a paths entry has more than one wildcard.
	ErrInvalidPathAlias = zerr.New("path alias may contain at most one '*'")

	// ErrNoEntries is returned when a compile request names no entry files.
	ErrNoEntries = zerr.New("no entry files specified")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrUnsupportedConfigFormat is returned for config files with an unknown extension.
	ErrUnsupportedConfigFormat = zerr.New("unsupported config file format")

	// ErrEntryNotFound is returned when an entry path does not exist or is not readable.
	ErrEntryNotFound = zerr.New("entry file not found")

	// ErrUnresolvedSpecifier is returned when an import cannot be mapped to a file, alias or external.
	ErrUnresolvedSpecifier = zerr.New("cannot resolve module specifier")

	// ErrSourceReadFailed is returned when a source file cannot be read.
	ErrSourceReadFailed = zerr.New("failed to read source file")

	// ErrParseFailed is returned when a source file contains malformed syntax.
	ErrParseFailed = zerr.New("syntax error")

	// ErrTransformFailed is returned when a transform stage hits an unsupported construct.
	ErrTransformFailed = zerr.New("transform failed")

	// ErrCacheReadFailed is returned when a cache entry cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache entry")

	// ErrCacheWriteFailed is returned when a cache entry cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write cache entry")

	// ErrCacheCorrupt is returned when a cache entry exists but cannot be decoded.
	ErrCacheCorrupt = zerr.New("corrupt cache entry")

	// ErrCacheIndexFailed is returned when the cache manifest cannot be opened or updated.
	ErrCacheIndexFailed = zerr.New("failed to update cache index")

	// ErrRemoteCacheFailed is returned when the remote cache tier fails.
	ErrRemoteCacheFailed = zerr.New("remote cache request failed")

	// ErrOutputWriteFailed is returned when an emitted file cannot be written.
	ErrOutputWriteFailed = zerr.New("failed to write output file")

	// ErrBuildFailed is returned by the CLI layer when any unit failed or any error diagnostic exists.
	ErrBuildFailed = zerr.New("build failed")

	// ErrWatchFailed is returned when the file watcher cannot be started.
	ErrWatchFailed = zerr.New("failed to start file watcher")

	// ErrCleanFailed is returned when cache or output directories cannot be removed.
	ErrCleanFailed = zerr.New("failed to clean")
)
