package config

import (
	"fmt"
	"reflect"
	"strings"
)

// ChangeType 变更类型
type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "added"
	ChangeTypeModified ChangeType = "modified"
	ChangeTypeDeleted  ChangeType = "deleted"
)

// ConfigChange 单项配置变更
type ConfigChange struct {
	Path            string      `json:"path"` // 配置路径，如 "optimizer.workers"
	Type            ChangeType  `json:"type"`
	OldValue        interface{} `json:"old_value"`
	NewValue        interface{} `json:"new_value"`
	RequiresRestart bool        `json:"requires_restart"`
}

// ConfigDiff 两份配置的差异
type ConfigDiff struct {
	Changes         []ConfigChange `json:"changes"`
	RequiresRestart bool           `json:"requires_restart"`
}

// DiffConfig 对比两份配置，按 yaml 路径生成变更列表
func DiffConfig(oldConfig, newConfig *Config) *ConfigDiff {
	diff := &ConfigDiff{Changes: []ConfigChange{}}
	diff.walk(reflect.ValueOf(*oldConfig), reflect.ValueOf(*newConfig), "")

	for _, change := range diff.Changes {
		if change.RequiresRestart {
			diff.RequiresRestart = true
			break
		}
	}

	return diff
}

// walk 递归对比两个同类型的值
func (d *ConfigDiff) walk(oldVal, newVal reflect.Value, path string) {
	switch oldVal.Kind() {
	case reflect.Struct:
		d.walkStruct(oldVal, newVal, path)
	case reflect.Map:
		d.walkMap(oldVal, newVal, path)
	case reflect.Slice, reflect.Array:
		d.walkSlice(oldVal, newVal, path)
	default:
		if !reflect.DeepEqual(oldVal.Interface(), newVal.Interface()) {
			d.addChange(path, ChangeTypeModified, oldVal.Interface(), newVal.Interface())
		}
	}
}

// walkStruct 按 yaml 标签展开结构体字段
func (d *ConfigDiff) walkStruct(oldVal, newVal reflect.Value, basePath string) {
	typ := oldVal.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "-" {
			continue
		}
		yamlName := strings.Split(yamlTag, ",")[0]
		if yamlName == "" {
			yamlName = strings.ToLower(field.Name)
		}

		fieldPath := yamlName
		if basePath != "" {
			fieldPath = basePath + "." + yamlName
		}

		d.walk(oldVal.Field(i), newVal.Field(i), fieldPath)
	}
}

// walkMap 对比 map 的键集合与值
func (d *ConfigDiff) walkMap(oldVal, newVal reflect.Value, basePath string) {
	for _, key := range oldVal.MapKeys() {
		path := joinPath(basePath, fmt.Sprintf("%v", key.Interface()))
		newValue := newVal.MapIndex(key)
		if !newValue.IsValid() {
			d.addChange(path, ChangeTypeDeleted, oldVal.MapIndex(key).Interface(), nil)
			continue
		}
		d.walk(oldVal.MapIndex(key), newValue, path)
	}

	for _, key := range newVal.MapKeys() {
		if oldVal.MapIndex(key).IsValid() {
			continue
		}
		path := joinPath(basePath, fmt.Sprintf("%v", key.Interface()))
		d.addChange(path, ChangeTypeAdded, nil, newVal.MapIndex(key).Interface())
	}
}

// walkSlice 长度不同视为整体替换，相同则逐元素对比
func (d *ConfigDiff) walkSlice(oldVal, newVal reflect.Value, basePath string) {
	if oldVal.Len() != newVal.Len() {
		d.addChange(basePath, ChangeTypeModified, oldVal.Interface(), newVal.Interface())
		return
	}

	for i := 0; i < oldVal.Len(); i++ {
		d.walk(oldVal.Index(i), newVal.Index(i), fmt.Sprintf("%s[%d]", basePath, i))
	}
}

func (d *ConfigDiff) addChange(path string, changeType ChangeType, oldValue, newValue interface{}) {
	d.Changes = append(d.Changes, ConfigChange{
		Path:            path,
		Type:            changeType,
		OldValue:        oldValue,
		NewValue:        newValue,
		RequiresRestart: requiresRestart(path),
	})
}

func joinPath(base, elem string) string {
	if base == "" {
		return elem
	}
	return base + "." + elem
}

// requiresRestart 判断配置路径的变更是否需要重启。
// 连接类资源（数据库、Redis、数据源客户端、通知渠道）在启动时构建，
// 运行中只有调参类配置可以热生效。
func requiresRestart(path string) bool {
	restartPaths := []string{
		"system.timezone",
		"web.enabled",
		"web.host",
		"web.port",
		"web.pprof",
		"database",
		"storage",
		"cache",
		"data",
		"notifications",
		"event_center",
	}

	for _, restartPath := range restartPaths {
		if path == restartPath || strings.HasPrefix(path, restartPath+".") {
			return true
		}
	}

	return false
}
