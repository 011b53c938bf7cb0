package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter("debug", "json", &buf); err != nil {
		t.Fatalf("初始化日志失败: %v", err)
	}

	Debug("收到 MKPDU", Hex("mi", []byte{0xde, 0xad, 0xbe, 0xef}), Uint32("mn", 7))
	Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("日志不是合法 JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "收到 MKPDU" {
		t.Errorf("msg 错误: got %v", entry["msg"])
	}
	if entry["mi"] != "deadbeef" {
		t.Errorf("mi 字段错误: got %v", entry["mi"])
	}
	if entry["mn"] != float64(7) {
		t.Errorf("mn 字段错误: got %v", entry["mn"])
	}
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	if err := InitWithWriter("info", "xml", &bytes.Buffer{}); err == nil {
		t.Fatal("未知格式应返回错误")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter("warn", "json", &buf); err != nil {
		t.Fatalf("初始化日志失败: %v", err)
	}
	Info("不应输出")
	if buf.Len() != 0 {
		t.Errorf("info 日志在 warn 级别下被输出: %q", buf.String())
	}
	Warn("应输出")
	if buf.Len() == 0 {
		t.Error("warn 日志未输出")
	}
}
