package options

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Options 跨重启持久化的集成选项
type Options struct {
	// ContinuousMonitoring 持续监测偏好，启动时通过 SetContinuousMonitoring 重新下发
	ContinuousMonitoring bool `yaml:"rhtm"`
	// LastHost 最近一次成功连接的设备地址，mDNS 不可用时作为候选
	LastHost string `yaml:"last_host"`
}

// Store 选项文件存储，读写加锁避免并发写坏文件
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load 读取选项。文件不存在不算错误，返回 nil 表示尚无持久化选项
func (s *Store) Load() (*Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取选项文件失败 %s: %w", s.path, err)
	}

	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("解析选项文件失败 %s: %w", s.path, err)
	}
	return &opts, nil
}

// Save 写回选项文件
func (s *Store) Save(opts *Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("序列化选项失败: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("写入选项文件失败 %s: %w", s.path, err)
	}
	return nil
}
