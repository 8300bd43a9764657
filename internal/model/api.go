package model

// UploadResponse POST /api/upload 响应
type UploadResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    *UploadData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// UploadData 上传成功后的数据概览
type UploadData struct {
	ScheduleAim *DatasetPreview `json:"schedule_aim,omitempty"`
	POLists     *DatasetPreview `json:"po_lists,omitempty"`
	Conversion  *Conversion     `json:"conversion,omitempty"`
}

// DatasetPreview 单个文件的数据概览
type DatasetPreview struct {
	Filename string           `json:"filename,omitempty"`
	Rows     int              `json:"rows"`
	Columns  StringList       `json:"columns"`
	SKUs     StringList       `json:"skus"`
	Preview  []map[string]any `json:"preview,omitempty"`
}

// Conversion 排程文件格式转换信息
type Conversion struct {
	Format    string `json:"format,omitempty"` // cross_table / long_format
	Converted bool   `json:"converted"`
	Message   string `json:"message,omitempty"`
}

// OptimizeResponse POST /api/optimize 响应
type OptimizeResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    *ResultPayload `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}
