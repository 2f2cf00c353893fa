package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(logFile)
	if err != nil {
		t.Fatalf("NewLogger失败: %v", err)
	}
	defer logger.Close()

	logger.Info("hello")
	logger.Error("boom")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "INFO: hello") {
		t.Errorf("缺少INFO日志: %q", content)
	}
	if !strings.Contains(content, "ERROR: boom") {
		t.Errorf("缺少ERROR日志: %q", content)
	}
}

func TestLoggerSubscribe(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(logFile)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	ch := logger.Subscribe()
	logger.Warning("watch out")

	select {
	case msg := <-ch:
		if !strings.Contains(msg, "WARNING: watch out") {
			t.Errorf("订阅消息内容错误: %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("未收到订阅消息")
	}
}

func TestLoggerRotate(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "test.log")
	logger, err := NewLogger(logFile)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	// 写入超过1字节即触发轮转
	logger.Info("this line is longer than one byte")
	if err := logger.CheckRotate("1"); err != nil {
		t.Fatalf("CheckRotate失败: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("轮转后文件数 = %d, want 2", len(entries))
	}

	// 轮转后新文件可以继续写
	logger.Info("after rotate")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "after rotate") {
		t.Error("轮转后写入失败")
	}
}

func TestEvalSize(t *testing.T) {
	cases := map[string]int64{
		"1024":             1024,
		"10 * 1024":        10240,
		"10 * 1024 * 1024": 10 * 1024 * 1024,
	}
	for expr, want := range cases {
		if got := evalSize(expr); got != want {
			t.Errorf("evalSize(%q) = %d, want %d", expr, got, want)
		}
	}
}

func TestLogLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		DEBUG: "DEBUG", INFO: "INFO", WARNING: "WARNING",
		ERROR: "ERROR", FATAL: "FATAL", LogLevel(99): "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
