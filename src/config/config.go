package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的运行配置
type Config struct {
	InputPath     string   `json:"input_path"`        // 原始数据文件(csv/xlsx)
	SheetName     string   `json:"sheet_name"`        // xlsx 输入时读取的工作表
	InputEncoding string   `json:"input_encoding"`    // utf-8 / latin1 / windows-1252 / gbk
	DataDir       string   `json:"data_dir"`          // 邮件附件保存目录
	OutputPath    string   `json:"output_path"`       // 导出的xlsx报表
	EnrichedPath  string   `json:"enriched_path"`     // 只含清洗后明细的xlsx，为空不导出
	LogName       string   `json:"log_name"`          // 日志文件
	LogMaxSize    string   `json:"log_max_size"`      // 例如 "10 * 1024 * 1024"
	PidFile       string   `json:"pid_file"`          // SIGHUP 辅助程序读取
	LogHTTPAddr   string   `json:"log_http_addr"`     // 为空则不启动日志页面
	Watch         bool     `json:"watch"`             // 输入文件变化时重新分析
	ScheduleEvery Duration `json:"schedule_interval"` // 定时重新分析，0 表示关闭

	Email struct {
		Server        string   `json:"server"`         // IMAP服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server   string   `json:"server"`   // SMTP服务器地址
		Username string   `json:"username"` // 发件人
		Password string   `json:"password"` // 授权码
		To       []string `json:"to"`       // 收件人
		Subject  string   `json:"subject"`  // 报表邮件主题
	} `json:"send_email"`

	Push struct {
		Webhook string `json:"webhook"` // 钉钉机器人地址
		Secret  string `json:"secret"`  // 加签密钥，可为空
	} `json:"push"`
}

// DataConfig 数据列映射与分桶参数
type DataConfig struct {
	Columns          map[string]string `json:"columns"`
	RatingEdges      []float64         `json:"rating_edges"`
	OutlierThreshold float64           `json:"outlier_threshold"`
	TopCategories    int               `json:"top_categories"`
	TimePeriodPolicy string            `json:"time_period_policy"`
}

// 逻辑字段名，对应 dataconfig.json 中 columns 的 key
const (
	FieldOrderDate    = "order_date"
	FieldOrderTime    = "order_time"
	FieldPickupTime   = "pickup_time"
	FieldDeliveryTime = "delivery_time"
	FieldAgentRating  = "agent_rating"
	FieldVehicle      = "vehicle"
	FieldArea         = "area"
	FieldCategory     = "category"
	FieldWeather      = "weather"
)

// DefaultColumns 原始数据集的表头
var DefaultColumns = map[string]string{
	FieldOrderDate:    "Order_Date",
	FieldOrderTime:    "Order_Time",
	FieldPickupTime:   "Pickup_Time",
	FieldDeliveryTime: "Delivery_Time",
	FieldAgentRating:  "Agent_Rating",
	FieldVehicle:      "Vehicle",
	FieldArea:         "Area",
	FieldCategory:     "Category",
	FieldWeather:      "Weather",
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
	mu                 sync.RWMutex
)

// LoadConfig 只加载一次，之后返回同一份配置
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Load 不经过 sync.Once，每次都重新读取文件
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	return loadConfigs(jsonFolder, jsonFile, dataJsonFile)
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

	cfg.applyDefaults()
	dcfg.applyDefaults()
	if err := dcfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
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
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.InputEncoding == "" {
		c.InputEncoding = "utf-8"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.OutputPath == "" {
		c.OutputPath = "delivery_report.xlsx"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}

func (dc *DataConfig) applyDefaults() {
	if dc.Columns == nil {
		dc.Columns = make(map[string]string, len(DefaultColumns))
	}
	for field, header := range DefaultColumns {
		if dc.Columns[field] == "" {
			dc.Columns[field] = header
		}
	}
	if len(dc.RatingEdges) == 0 {
		dc.RatingEdges = []float64{0, 1, 2, 3, 4, 5}
	}
	if dc.OutlierThreshold == 0 {
		dc.OutlierThreshold = 15
	}
	if dc.TopCategories == 0 {
		dc.TopCategories = 10
	}
	if dc.TimePeriodPolicy == "" {
		dc.TimePeriodPolicy = "total"
	}
}

// Validate 检查分桶边界与策略
func (dc *DataConfig) Validate() error {
	if len(dc.RatingEdges) < 2 {
		return fmt.Errorf("rating_edges 至少需要两个边界")
	}
	for i := 1; i < len(dc.RatingEdges); i++ {
		if dc.RatingEdges[i] <= dc.RatingEdges[i-1] {
			return fmt.Errorf("rating_edges 必须严格递增: %v", dc.RatingEdges)
		}
	}
	switch dc.TimePeriodPolicy {
	case "total", "legacy":
	default:
		return fmt.Errorf("未知的 time_period_policy: %q", dc.TimePeriodPolicy)
	}
	if dc.TopCategories < 0 {
		return fmt.Errorf("top_categories 不能为负数: %d", dc.TopCategories)
	}
	return nil
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (dc *DataConfig) Column(field string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Columns[field]
}
