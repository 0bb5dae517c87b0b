// email_handler.go
package email

import (
	"DeliveryInsight/src/storage"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ====================== 邮件处理器实现 ======================

// AttachmentHandler 把目标邮件中的 csv/xlsx 附件保存到数据目录
type AttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex    // 保护processedUIDs的读写锁
}

func NewAttachmentHandler(subject, dataDir string) *AttachmentHandler {
	return &AttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存附件，返回数据集文件路径。
// 邮件已处理或不匹配时返回空字符串。
func (h *AttachmentHandler) Handle(email *Email, logger *storage.Logger) (string, error) {
	if email == nil || h.IsProcessed(email.UID) {
		return "", nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		logger.Infof("跳过主题不匹配的邮件: %s", email.Subject)
		return "", nil
	}

	logger.Infof("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05"))

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	var datasetPath string
	for _, attachment := range email.Attachments {
		if !attachment.IsDataset() {
			continue
		}

		// 只保留文件名，防止附件名中带路径
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return "", fmt.Errorf("保存附件失败: %w", err)
		}
		logger.Infof("附件已保存到: %s", filePath)

		if datasetPath == "" {
			datasetPath = filePath
		}
	}

	if datasetPath != "" {
		h.markAsProcessed(email.UID)
	}
	return datasetPath, nil
}
