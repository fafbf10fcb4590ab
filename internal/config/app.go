package config

type AppConfig struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Stream    StreamConfig
	Retention RetentionConfig
	Catalog   CatalogConfig
	Notify    NotifyConfig
	Log       LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	upstreamCfg, err := LoadUpstream()
	if err != nil {
		return AppConfig{}, err
	}
	streamCfg, err := LoadStream()
	if err != nil {
		return AppConfig{}, err
	}
	retentionCfg, err := LoadRetention()
	if err != nil {
		return AppConfig{}, err
	}
	catalogCfg, err := LoadCatalog()
	if err != nil {
		return AppConfig{}, err
	}
	notifyCfg, err := LoadNotify()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:    serverCfg,
		Upstream:  upstreamCfg,
		Stream:    streamCfg,
		Retention: retentionCfg,
		Catalog:   catalogCfg,
		Notify:    notifyCfg,
		Log:       logCfg,
	}, nil
}
