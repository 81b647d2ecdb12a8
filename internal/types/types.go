// Package types defines core data types and enums for the LaTeX workbench.
package types

import (
	"errors"
	"os"
)

// Config 应用配置
type Config struct {
	MaxLevel   int       `json:"max_level" yaml:"max_level" mapstructure:"max_level"`       // 大纲解析的最大标题层级
	Encoding   string    `json:"encoding" yaml:"encoding" mapstructure:"encoding"`          // auto, utf-8, gbk, utf-16le, utf-16be
	BackupDir  string    `json:"backup_dir" yaml:"backup_dir" mapstructure:"backup_dir"`    // 为空时备份放在源文件旁
	BackupKeep int       `json:"backup_keep" yaml:"backup_keep" mapstructure:"backup_keep"` // 每个文件保留的备份数
	RecentMax  int       `json:"recent_max" yaml:"recent_max" mapstructure:"recent_max"`    // 最近文件数量上限
	AidDir     string    `json:"aid_dir" yaml:"aid_dir" mapstructure:"aid_dir"`             // 辅助片段目录
	Log        LogConfig `json:"log" yaml:"log" mapstructure:"log"`
}

// LogConfig 日志配置
type LogConfig struct {
	File    string `json:"file" yaml:"file" mapstructure:"file"`
	Level   string `json:"level" yaml:"level" mapstructure:"level"`
	Console bool   `json:"console" yaml:"console" mapstructure:"console"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrIO           ErrorCode = "IO_ERROR"
	ErrEncoding     ErrorCode = "ENCODING_ERROR"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewIOError wraps a file system failure. Missing files get ErrFileNotFound,
// everything else ErrIO.
func NewIOError(message, path string, cause error) *AppError {
	code := ErrIO
	if errors.Is(cause, os.ErrNotExist) {
		code = ErrFileNotFound
	}
	return NewAppErrorWithDetails(code, message, path, cause)
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
