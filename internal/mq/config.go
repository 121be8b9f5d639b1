// Package mq 提供订单事件的RabbitMQ发布
package mq

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"
)

// Config RabbitMQ配置
type Config struct {
	// 连接配置
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	VHost    string `json:"vhost"`

	// TLS配置
	UseTLS        bool   `json:"use_tls"`
	TLSServerName string `json:"tls_server_name"`

	ConnectionTimeout time.Duration `json:"connection_timeout"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// 订单事件交换机（topic）
	Exchange string `json:"exchange"`

	// 发布配置
	PublishTimeout   time.Duration `json:"publish_timeout"`
	MaxRetryAttempts int           `json:"max_retry_attempts"`
	RetryInterval    time.Duration `json:"retry_interval"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5672,
		Username: "guest",
		Password: "guest",
		VHost:    "/",

		ConnectionTimeout: 10 * time.Second,
		HeartbeatInterval: 10 * time.Second,

		Exchange: "catalog.orders",

		PublishTimeout:   5 * time.Second,
		MaxRetryAttempts: 2,
		RetryInterval:    200 * time.Millisecond,
	}
}

// GetConnectionURL 获取连接URL
func (c *Config) GetConnectionURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.VHost,
	}
	if c.UseTLS {
		u.Scheme = "amqps"
	}
	return u.String()
}

// GetTLSConfig 获取TLS配置
func (c *Config) GetTLSConfig() *tls.Config {
	if !c.UseTLS {
		return nil
	}
	serverName := c.TLSServerName
	if serverName == "" {
		serverName = c.Host
	}
	return &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Exchange == "" {
		return fmt.Errorf("exchange is required")
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection_timeout must be greater than 0")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("publish_timeout must be greater than 0")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must be >= 0")
	}
	if c.MaxRetryAttempts > 0 && c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be greater than 0")
	}
	return nil
}
