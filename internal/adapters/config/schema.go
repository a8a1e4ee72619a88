package config

// File is the on-disk shape of synapse.yaml and synapse.toml. Pointer fields
// distinguish an absent key from a zero value, so only keys that are present
// override the defaults.
type File struct {
	Root           *string        `yaml:"root"            toml:"root"`
	TargetLanguage *string        `yaml:"target_language" toml:"target_language"`
	ModuleFormat   *string        `yaml:"module_format"   toml:"module_format"`
	SourceDir      *string        `yaml:"source_dir"      toml:"source_dir"`
	OutputDir      *string        `yaml:"output_dir"      toml:"output_dir"`
	Cache          *CacheDTO      `yaml:"cache"           toml:"cache"`
	Minify         *bool          `yaml:"minify"          toml:"minify"`
	SourceMaps     *bool          `yaml:"source_maps"     toml:"source_maps"`
	MaxParallelism any            `yaml:"max_parallelism" toml:"max_parallelism"`
	JSX            *JSXDTO        `yaml:"jsx"             toml:"jsx"`
	TypeScript     *TypeScriptDTO `yaml:"typescript"      toml:"typescript"`
	Externals      []string       `yaml:"externals"       toml:"externals"`
}

// CacheDTO is the cache section. An empty dir disables the disk tier.
type CacheDTO struct {
	Dir            *string    `yaml:"dir"              toml:"dir"`
	MemoryEntries  *int       `yaml:"memory_entries"   toml:"memory_entries"`
	MaxDiskEntries *int       `yaml:"max_disk_entries" toml:"max_disk_entries"`
	Disabled       *bool      `yaml:"disabled"         toml:"disabled"`
	Remote         *RemoteDTO `yaml:"remote"           toml:"remote"`
}

// RemoteDTO locates the object-store tier. Credentials come from the environment.
type RemoteDTO struct {
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	Bucket   string `yaml:"bucket"   toml:"bucket"`
	Region   string `yaml:"region"   toml:"region"`
	Prefix   string `yaml:"prefix"   toml:"prefix"`
	Secure   bool   `yaml:"secure"   toml:"secure"`
}

// JSXDTO is the jsx section.
type JSXDTO struct {
	Enabled      *bool   `yaml:"enabled"       toml:"enabled"`
	Runtime      *string `yaml:"runtime"       toml:"runtime"`
	Factory      *string `yaml:"factory"       toml:"factory"`
	Fragment     *string `yaml:"fragment"      toml:"fragment"`
	ImportSource *string `yaml:"import_source" toml:"import_source"`
}

// TypeScriptDTO is the typescript section.
type TypeScriptDTO struct {
	ExperimentalDecorators *bool               `yaml:"experimental_decorators" toml:"experimental_decorators"`
	EmitDecoratorMetadata  *bool               `yaml:"emit_decorator_metadata" toml:"emit_decorator_metadata"`
	BaseURL                *string             `yaml:"base_url"                toml:"base_url"`
	Paths                  map[string][]string `yaml:"paths"                   toml:"paths"`
	ESModuleInterop        *bool               `yaml:"es_module_interop"       toml:"es_module_interop"`
}
