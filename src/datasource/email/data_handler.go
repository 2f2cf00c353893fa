// data_handler.go
package email

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TripAttachmentHandler 把邮件里的行程数据附件落盘到数据目录
type TripAttachmentHandler struct {
	dataDir string
}

func NewTripAttachmentHandler(dataDir string) *TripAttachmentHandler {
	return &TripAttachmentHandler{dataDir: dataDir}
}

// SaveTripAttachment 保存邮件中第一个行程数据附件
// 返回: 落盘后的文件路径
func (h *TripAttachmentHandler) SaveTripAttachment(e *Email) (string, error) {
	if e == nil {
		return "", fmt.Errorf("邮件为空")
	}

	att := firstTripAttachment(e)
	if att == nil {
		return "", fmt.Errorf("邮件中没有csv/xlsx附件: %s", e.Subject)
	}

	if err := os.MkdirAll(h.dataDir, 0755); err != nil {
		return "", fmt.Errorf("创建数据目录失败: %w", err)
	}

	filePath := filepath.Join(h.dataDir, uniqueName(e.UID, att))
	if err := os.WriteFile(filePath, att.Content, 0644); err != nil {
		return "", fmt.Errorf("保存附件失败: %w", err)
	}
	return filePath, nil
}

// firstTripAttachment 返回第一个行程数据附件
func firstTripAttachment(e *Email) *Attachment {
	for _, att := range e.Attachments {
		if isTripAttachment(att.Filename) {
			return att
		}
	}
	return nil
}

func isTripAttachment(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".csv" || ext == ".xlsx"
}

// uniqueName 用邮件UID+内容md5前缀拼出不冲突的文件名
// 同一封邮件重复投递时会覆盖同一个文件，不会越积越多
func uniqueName(uid uint32, att *Attachment) string {
	hash := md5.Sum(att.Content)
	base := sanitizeFilename(att.Filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%d_%s%s", stem, uid, hex.EncodeToString(hash[:4]), ext)
}

// sanitizeFilename 去掉路径分隔符，防止附件名里带路径穿越
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "trip_data.csv"
	}
	return name
}
