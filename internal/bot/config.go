package bot

// Config is the [bot] section of the service config.
type Config struct {
	Token    string  `toml:"token"`
	AdminIDs []int64 `toml:"admin_ids"`
}
