package email

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSaveTripAttachment(t *testing.T) {
	dir := t.TempDir()
	handler := NewTripAttachmentHandler(dir)

	e := &Email{
		UID:     42,
		Subject: "Trip Data March",
		Attachments: []*Attachment{
			{Filename: "readme.txt", Content: []byte("ignore me")},
			{Filename: "trips.csv", Content: []byte("fare_amount\n10\n")},
		},
	}

	filePath, err := handler.SaveTripAttachment(e)
	if err != nil {
		t.Fatalf("SaveTripAttachment失败: %v", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fare_amount\n10\n" {
		t.Errorf("附件内容错误: %q", data)
	}

	name := filepath.Base(filePath)
	if !strings.HasPrefix(name, "trips_42_") || !strings.HasSuffix(name, ".csv") {
		t.Errorf("文件名 = %q, 预期trips_42_<hash>.csv", name)
	}

	// 同一封邮件再处理一次应得到同一个文件
	again, err := handler.SaveTripAttachment(e)
	if err != nil {
		t.Fatal(err)
	}
	if again != filePath {
		t.Errorf("重复投递生成了不同文件: %q != %q", again, filePath)
	}
}

func TestSaveTripAttachmentNoData(t *testing.T) {
	handler := NewTripAttachmentHandler(t.TempDir())

	if _, err := handler.SaveTripAttachment(nil); err == nil {
		t.Error("空邮件应返回错误")
	}

	e := &Email{
		UID:         1,
		Subject:     "no data here",
		Attachments: []*Attachment{{Filename: "photo.png", Content: []byte("...")}},
	}
	if _, err := handler.SaveTripAttachment(e); err == nil {
		t.Error("无数据附件应返回错误")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"trips.csv":        "trips.csv",
		"../evil.csv":      "evil.csv",
		"/etc/passwd.csv":  "passwd.csv",
		"a/b/c/trips.xlsx": "trips.xlsx",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsTripAttachment(t *testing.T) {
	cases := map[string]bool{
		"trips.csv":  true,
		"trips.CSV":  true,
		"trips.xlsx": true,
		"trips.pdf":  false,
		"trips":      false,
	}
	for name, want := range cases {
		if got := isTripAttachment(name); got != want {
			t.Errorf("isTripAttachment(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFilterLatestTargetEmail(t *testing.T) {
	emails := []*Email{
		{Subject: "Trip Data old", Date: mustDate("2026-08-01")},
		{Subject: "unrelated", Date: mustDate("2026-08-20")},
		{Subject: "Trip Data new", Date: mustDate("2026-08-15")},
	}

	got := filterLatestTargetEmail(emails, "Trip Data")
	if got == nil || got.Subject != "Trip Data new" {
		t.Errorf("应选中最新的目标邮件, got %+v", got)
	}

	if filterLatestTargetEmail(emails, "nothing") != nil {
		t.Error("无匹配时应返回nil")
	}
}
