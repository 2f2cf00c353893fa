package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Email struct {
		Server        string   `json:"server"`         // 邮件服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	DataDir      string `json:"data_dir"`      // 原始数据存储目录
	InputFile    string `json:"input_file"`    // 原始行程数据文件(csv或xlsx)
	OutputDir    string `json:"output_dir"`    // 导出文件目录
	OutputPrefix string `json:"output_prefix"` // 导出文件名前缀，如 uber
	SheetName    string `json:"sheet_name"`    // xlsx输入时的工作表名
	LogName      string `json:"log_name"`
	LogMaxSize   string `json:"log_max_size"`

	SendEmail struct {
		Enabled   bool   `json:"enabled"`
		Server    string `json:"server"`    // SMTP服务器地址
		Username  string `json:"username"`  // 邮箱用户名
		Password  string `json:"password"`  // 邮箱密码
		Recipient string `json:"recipient"` // 结果接收人
	} `json:"send_email"`

	Webhook WebhookConfig `json:"webhook"`
}

// WebhookConfig 运行摘要推送配置
type WebhookConfig struct {
	Enabled       bool     `json:"enabled"`
	URL           string   `json:"url"`            // 运行摘要推送地址
	RetryTimes    int      `json:"retry_times"`    // 推送失败重试次数
	RetryInterval Duration `json:"retry_interval"` // 重试间隔
}

// BoundingBox 经纬度矩形范围
type BoundingBox struct {
	MinLon float64 `json:"min_longitude"`
	MaxLon float64 `json:"max_longitude"`
	MinLat float64 `json:"min_latitude"`
	MaxLat float64 `json:"max_latitude"`
}

// Contains 判断坐标是否落在矩形内(边界含)
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// BoroughBox 行政区名称与对应矩形，按优先级排列，先匹配先得
type BoroughBox struct {
	Name string      `json:"name"`
	Box  BoundingBox `json:"box"`
}

// DataConfig 数据处理规则配置，业务常量全部由此提供，避免散落在代码里
type DataConfig struct {
	FareCap    float64      `json:"fare_cap"`    // 车费绝对上限(货币单位)，IQR上界与其取小
	CityBounds BoundingBox  `json:"city_bounds"` // 城市坐标有效范围
	Boroughs   []BoroughBox `json:"boroughs"`    // 行政区矩形，按优先级排列
	CityCenter struct {
		Lat float64 `json:"latitude"`
		Lon float64 `json:"longitude"`
	} `json:"city_center"` // 市中心参考点(时报广场)
	MinPassengers int `json:"min_passengers"` // 乘客数下限
	MaxPassengers int `json:"max_passengers"` // 乘客数上限
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
)

// DefaultDataConfig 返回与原始纽约数据集一致的默认规则
func DefaultDataConfig() *DataConfig {
	dc := &DataConfig{
		FareCap: 100,
		CityBounds: BoundingBox{
			MinLon: -74.3, MaxLon: -73.7,
			MinLat: 40.4, MaxLat: 41.0,
		},
		Boroughs: []BoroughBox{
			{Name: "Manhattan", Box: BoundingBox{MinLon: -74.02, MaxLon: -73.93, MinLat: 40.70, MaxLat: 40.88}},
			{Name: "Brooklyn", Box: BoundingBox{MinLon: -74.05, MaxLon: -73.83, MinLat: 40.57, MaxLat: 40.74}},
			{Name: "Queens", Box: BoundingBox{MinLon: -73.96, MaxLon: -73.70, MinLat: 40.54, MaxLat: 40.80}},
			{Name: "Bronx", Box: BoundingBox{MinLon: -73.93, MaxLon: -73.77, MinLat: 40.79, MaxLat: 40.92}},
			{Name: "Staten Island", Box: BoundingBox{MinLon: -74.26, MaxLon: -74.05, MinLat: 40.48, MaxLat: 40.65}},
		},
		MinPassengers: 1,
		MaxPassengers: 6,
	}
	dc.CityCenter.Lat = 40.7580
	dc.CityCenter.Lon = -73.9855
	return dc
}

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	ApplyDataDefaults(dcfg)
	return cfg, dcfg, nil
}

// ApplyDataDefaults 对缺失的规则项补默认值，保证规则配置残缺时流水线仍可运行
func ApplyDataDefaults(dcfg *DataConfig) {
	def := DefaultDataConfig()
	if dcfg.FareCap <= 0 {
		dcfg.FareCap = def.FareCap
	}
	if dcfg.CityBounds == (BoundingBox{}) {
		dcfg.CityBounds = def.CityBounds
	}
	if len(dcfg.Boroughs) == 0 {
		dcfg.Boroughs = def.Boroughs
	}
	if dcfg.CityCenter.Lat == 0 && dcfg.CityCenter.Lon == 0 {
		dcfg.CityCenter = def.CityCenter
	}
	if dcfg.MinPassengers <= 0 {
		dcfg.MinPassengers = def.MinPassengers
	}
	if dcfg.MaxPassengers <= 0 {
		dcfg.MaxPassengers = def.MaxPassengers
	}
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
