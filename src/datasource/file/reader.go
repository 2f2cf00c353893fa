// reader.go
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// 关键列的强制类型，避免类型推断把坐标识别成字符串
var columnTypes = map[string]series.Type{
	"fare_amount":       series.Float,
	"pickup_datetime":   series.String,
	"pickup_longitude":  series.Float,
	"pickup_latitude":   series.Float,
	"dropoff_longitude": series.Float,
	"dropoff_latitude":  series.Float,
	"passenger_count":   series.Int,
}

// ReadTable 按扩展名选择读取方式，统一返回DataFrame
// csv为主路径；xlsx用于邮箱里来的导出件
func ReadTable(filePath, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return ReadCSV(filePath)
	case ".xlsx":
		return ReadXLSX(filePath, sheetName)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的文件类型: %s", filePath)
	}
}

// ReadCSV 读取CSV文件为DataFrame
func ReadCSV(filePath string) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开csv文件失败: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(columnTypes),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析csv失败: %w", df.Err)
	}
	return df, nil
}

// ReadXLSX 读取Excel文件为DataFrame
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开xlsx文件失败: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

// ReadXLSXBytes 从内存数据读取Excel，用于邮件附件
func ReadXLSXBytes(data []byte, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析xlsx数据失败: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

// sheetToDataFrame 把xlsx工作表转成DataFrame，首行为表头
func sheetToDataFrame(xlFile *xlsx.File, sheetName string) (dataframe.DataFrame, error) {
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}

	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		// 未配置或找不到时退回第一个工作表
		sheet = xlFile.Sheets[0]
	}
	if len(sheet.Rows) < 2 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 没有数据行", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.Value)
	}

	records := [][]string{headers}
	for _, row := range sheet.Rows[1:] {
		record := make([]string, len(headers))
		for i, cell := range row.Cells {
			if i < len(headers) {
				record[i] = cell.Value
			}
		}
		records = append(records, record)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(columnTypes),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}
