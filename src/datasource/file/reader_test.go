package file

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

const sampleCSV = `Unnamed: 0,key,fare_amount,pickup_datetime,pickup_longitude,pickup_latitude,dropoff_longitude,dropoff_latitude,passenger_count
0,2009-06-15 17:26:21.0000001,4.5,2009-06-15 17:26:21 UTC,-73.844311,40.721319,-73.84161,40.712278,1
1,2010-01-05 16:52:16.0000002,16.9,2010-01-05 16:52:16 UTC,-74.016048,40.711303,-73.979268,40.782004,2
`

func TestReadCSV(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "trips.csv")
	if err := os.WriteFile(filePath, []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	df, err := ReadCSV(filePath)
	if err != nil {
		t.Fatalf("ReadCSV失败: %v", err)
	}

	if df.Nrow() != 2 {
		t.Fatalf("行数 = %d, want 2", df.Nrow())
	}

	// 关键列类型被强制指定
	if df.Col("fare_amount").Type() != series.Float {
		t.Errorf("fare_amount类型 = %v, want float", df.Col("fare_amount").Type())
	}
	if df.Col("passenger_count").Type() != series.Int {
		t.Errorf("passenger_count类型 = %v, want int", df.Col("passenger_count").Type())
	}
	if df.Col("pickup_datetime").Type() != series.String {
		t.Errorf("pickup_datetime类型 = %v, want string", df.Col("pickup_datetime").Type())
	}

	// 数值精度
	if fare := df.Col("fare_amount").Float()[1]; math.Abs(fare-16.9) > 1e-6 {
		t.Errorf("fare_amount[1] = %v, want 16.9", fare)
	}
	if lon := df.Col("pickup_longitude").Float()[0]; math.Abs(lon-(-73.844311)) > 1e-6 {
		t.Errorf("pickup_longitude[0] = %v, want -73.844311", lon)
	}
}

func TestReadTableUnsupported(t *testing.T) {
	if _, err := ReadTable("trips.txt", ""); err == nil {
		t.Fatal("不支持的扩展名应返回错误")
	}
}

func TestReadXLSX(t *testing.T) {
	xlFile := xlsx.NewFile()
	sheet, err := xlFile.AddSheet("trips")
	if err != nil {
		t.Fatal(err)
	}

	header := sheet.AddRow()
	for _, name := range []string{"fare_amount", "pickup_datetime", "passenger_count"} {
		header.AddCell().SetString(name)
	}
	row := sheet.AddRow()
	row.AddCell().SetString("12.5")
	row.AddCell().SetString("2015-03-14 08:30:00")
	row.AddCell().SetString("2")

	filePath := filepath.Join(t.TempDir(), "trips.xlsx")
	if err := xlFile.Save(filePath); err != nil {
		t.Fatal(err)
	}

	df, err := ReadTable(filePath, "trips")
	if err != nil {
		t.Fatalf("ReadTable失败: %v", err)
	}
	if df.Nrow() != 1 {
		t.Fatalf("行数 = %d, want 1", df.Nrow())
	}
	if fare := df.Col("fare_amount").Float()[0]; math.Abs(fare-12.5) > 1e-6 {
		t.Errorf("fare_amount = %v, want 12.5", fare)
	}

	// 找不到指定工作表时退回第一个
	df, err = ReadXLSX(filePath, "no-such-sheet")
	if err != nil {
		t.Fatalf("退回第一个工作表失败: %v", err)
	}
	if df.Nrow() != 1 {
		t.Errorf("行数 = %d, want 1", df.Nrow())
	}
}

func TestReadXLSXBytesEmpty(t *testing.T) {
	if _, err := ReadXLSXBytes([]byte("not an xlsx"), ""); err == nil {
		t.Fatal("非法xlsx数据应返回错误")
	}
}
