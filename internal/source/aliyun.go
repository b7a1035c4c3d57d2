package source

import (
	"errors"
	"strings"
	"time"
)

// AliyunPAISource parses Aliyun PAI DLC task notifications, which arrive in
// the Feishu post format: a list of tagged text runs holding "key：value"
// pairs.
type AliyunPAISource struct{}

// NewAliyunPAISource creates the PAI DLC parser.
func NewAliyunPAISource() *AliyunPAISource {
	return &AliyunPAISource{}
}

func (s *AliyunPAISource) Name() string { return "aliyun_pai" }

// Parse normalizes one task notification. Routine lifecycle statuses
// (Succeeded, Running, Queuing) yield an ignored extraction so they are
// recorded without notifying anyone.
func (s *AliyunPAISource) Parse(payload map[string]interface{}) (*Extraction, error) {
	post := dig(payload, "content", "post", "zh_cn")
	if post == nil {
		return nil, errors.New("payload has no feishu post content")
	}

	title, _ := post["title"].(string)
	if title == "" {
		title = "Aliyun PAI Notification"
	}

	fields := parseContentFields(post["content"])

	taskName := fields["任务名称"]
	if taskName == "" {
		taskName = "Unknown"
	}
	taskStatus := fields["任务状态"]
	event := fields["相关事件"]
	message := fields["消息内容"]

	labels := map[string]string{}
	for key, labelKey := range map[string]string{
		"任务名称": "task_name",
		"任务ID": "task_id",
		"任务状态": "task_status",
		"工作空间": "workspace",
		"所属区域": "region",
		"创建者":  "creator",
	} {
		if v := fields[key]; v != "" {
			labels[labelKey] = v
		}
	}

	annotations := map[string]interface{}{}
	if event != "" {
		annotations["event"] = event
	}
	if message != "" {
		annotations["message"] = message
	}
	if uid := fields["创建者UID"]; uid != "" {
		annotations["creator_uid"] = uid
	}

	status := mapTaskStatus(taskStatus)

	parsed := map[string]interface{}{
		"source": s.Name(),
		"status": status,
		"alerts": []interface{}{map[string]interface{}{
			"name":        taskName,
			"status":      status,
			"severity":    mapTaskSeverity(taskStatus),
			"summary":     title + ": " + event,
			"description": message,
			"labels":      labels,
			"annotations": annotations,
			"starts_at":   parseTimestamp(fields["开始时间"]),
			"url":         fields["_url"],
			"fingerprint": fields["任务ID"],
		}},
		"labels":       labels,
		"external_url": fields["_url"],
	}

	return &Extraction{
		Title:       taskName,
		Description: message,
		Severity:    mapTaskSeverity(taskStatus),
		Status:      status,
		Labels:      labels,
		ParsedData:  parsed,
	}, nil
}

// parseContentFields flattens the nested post runs into key-value pairs.
// Text runs split on the fullwidth colon first, anchors contribute the url.
func parseContentFields(content interface{}) map[string]string {
	fields := map[string]string{}

	lines, ok := content.([]interface{})
	if !ok {
		return fields
	}
	for _, line := range lines {
		items, ok := line.([]interface{})
		if !ok {
			continue
		}
		for _, raw := range items {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			tag, _ := item["tag"].(string)
			switch tag {
			case "text":
				text, _ := item["text"].(string)
				key, value, found := strings.Cut(text, "：")
				if !found {
					key, value, found = strings.Cut(text, ":")
				}
				if found {
					fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
				}
			case "a":
				if href, _ := item["href"].(string); href != "" {
					fields["_url"] = href
				}
			}
		}
	}
	return fields
}

func parseTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC().Format(time.RFC3339)
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.Format(time.RFC3339)
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return ts.Format(time.RFC3339)
	}
	return value
}

func mapTaskSeverity(taskStatus string) string {
	switch taskStatus {
	case "Failed":
		return "critical"
	case "Stopped":
		return "warning"
	case "Succeeded", "Running", "Queuing", "EnvPreparing":
		return "info"
	default:
		return "warning"
	}
}

// Failed and Stopped fire tickets; routine statuses are informational only.
func mapTaskStatus(taskStatus string) string {
	switch taskStatus {
	case "Succeeded", "Running", "Queuing", "EnvPreparing", "":
		return StatusIgnored
	default:
		return StatusFiring
	}
}

func dig(m map[string]interface{}, keys ...string) map[string]interface{} {
	current := m
	for _, key := range keys {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current
}
