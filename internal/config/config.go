package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/progress"
	"github.com/kai657/po-adjustment/internal/results"
	"github.com/kai657/po-adjustment/internal/wizard"
)

// 环境变量
const (
	EnvRemoteURL = "POWIZARD_REMOTE_URL"
	EnvPort      = "POWIZARD_PORT"
	EnvDataDir   = "POWIZARD_DATA_DIR"
)

// AppConfig 应用配置
type AppConfig struct {
	Server   ServerConfig         `toml:"server"`
	Remote   RemoteConfig         `toml:"remote"`
	Data     DataConfig           `toml:"data"`
	Features results.Features     `toml:"features"`
	Progress ProgressConfig       `toml:"progress"`
	Notify   NotifyConfig         `toml:"notify"`
	Wizard   WizardConfig         `toml:"wizard"`
	Intake   wizard.IntakeOptions `toml:"intake"`
	Params   model.OptimizeParams `toml:"params"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int  `toml:"port"`
	DevMode     bool `toml:"dev_mode"`
	MaxUploadMB int  `toml:"max_upload_mb"`
}

// RemoteConfig 远端优化服务
type RemoteConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// ProgressConfig 进度模拟参数
type ProgressConfig struct {
	IntervalMS        int     `toml:"interval_ms"`
	MinStep           float64 `toml:"min_step"`
	MaxStep           float64 `toml:"max_step"`
	Ceiling           float64 `toml:"ceiling"`
	PhaseSpacing      float64 `toml:"phase_spacing"`
	CompletionDelayMS int     `toml:"completion_delay_ms"`
}

// NotifyConfig 消息提示
type NotifyConfig struct {
	DurationMS int `toml:"duration_ms"`
}

// WizardConfig 向导流程
type WizardConfig struct {
	UploadAdvanceDelayMS int `toml:"upload_advance_delay_ms"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	PortSpecified bool
	Path          string
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        5001,
			DevMode:     false,
			MaxUploadMB: 16,
		},
		Remote: RemoteConfig{
			BaseURL:        "http://127.0.0.1:5000",
			TimeoutSeconds: 600,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Features: results.Features{
			EnableGapAnalysis:    true,
			EnableDeviationChart: true,
		},
		Progress: ProgressConfig{
			IntervalMS:        500,
			MinStep:           5,
			MaxStep:           15,
			Ceiling:           90,
			PhaseSpacing:      15,
			CompletionDelayMS: 1500,
		},
		Notify: NotifyConfig{
			DurationMS: 3000,
		},
		Wizard: WizardConfig{
			UploadAdvanceDelayMS: 1500,
		},
		Params: model.OptimizeParams{
			PriorityWeeks:  8,
			PriorityWeight: 10.0,
			DateWeight:     0.0,
			MaxWorkers:     4,
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func exeDirOrDot() string {
	dir, err := GetExeDir()
	if err != nil || dir == "" {
		return "."
	}
	return dir
}

// LoadConfigWithInfo 从可执行文件同目录的 config.toml 加载配置
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	return LoadFromDir(exeDirOrDot())
}

// LoadFromDir 读取 dir 下的 .env 与 config.toml；配置文件不存在时使用默认值
func LoadFromDir(dir string) (*AppConfig, LoadConfigInfo, error) {
	configPath := filepath.Join(dir, "config.toml")
	info := LoadConfigInfo{Path: configPath}
	config := DefaultConfig()

	// .env 不覆盖已有的环境变量；文件不存在时忽略
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, err
		}
	case os.IsNotExist(err):
	default:
		return nil, info, err
	}

	applyEnv(config, &info)
	return config, info, nil
}

func applyEnv(config *AppConfig, info *LoadConfigInfo) {
	if v := os.Getenv(EnvRemoteURL); v != "" {
		config.Remote.BaseURL = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			config.Server.Port = port
			info.PortSpecified = true
		}
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		config.Data.DataDir = v
	}
}

// SaveConfig 保存配置到 path（通常为 LoadConfigInfo.Path）
func SaveConfig(config *AppConfig, path string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveDataDir 相对路径按可执行文件目录解析
func ResolveDataDir(config *AppConfig) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	return filepath.Join(exeDirOrDot(), config.Data.DataDir)
}

// EnsureDataDir 确保数据目录及子目录存在
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := ResolveDataDir(config)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	subdirs := []string{"exports", "cache"}
	for _, subdir := range subdirs {
		path := filepath.Join(dataDir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}

// GetDataPath 获取数据文件路径
func GetDataPath(config *AppConfig, subdir, filename string) string {
	return filepath.Join(ResolveDataDir(config), subdir, filename)
}

// ProgressSettings 转换为进度模拟参数
func (c *AppConfig) ProgressSettings() progress.Config {
	cfg := progress.DefaultConfig()
	cfg.Interval = millis(c.Progress.IntervalMS)
	cfg.MinStep = c.Progress.MinStep
	cfg.MaxStep = c.Progress.MaxStep
	cfg.Ceiling = c.Progress.Ceiling
	cfg.PhaseSpacing = c.Progress.PhaseSpacing
	cfg.CompletionDelay = millis(c.Progress.CompletionDelayMS)
	return cfg
}

// RemoteTimeout 远端请求超时
func (c *AppConfig) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// MaxUploadBytes 单次上传大小上限
func (c *AppConfig) MaxUploadBytes() int64 {
	if c.Server.MaxUploadMB <= 0 {
		return 16 << 20
	}
	return int64(c.Server.MaxUploadMB) << 20
}

// SessionOptions 向导会话选项
func (c *AppConfig) SessionOptions() wizard.Options {
	return wizard.Options{
		Intake:             c.Intake,
		Features:           c.Features,
		Params:             c.Params,
		Progress:           c.ProgressSettings(),
		NotifyDuration:     millis(c.Notify.DurationMS),
		UploadAdvanceDelay: millis(c.Wizard.UploadAdvanceDelayMS),
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
