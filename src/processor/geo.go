// geo.go
package processor

import (
	"math"

	"FareInsight/src/config"
)

const (
	earthRadiusKM = 6371.0 // 地球半径(公里)
	kmPerDegLat   = 111.0  // 纬度每度近似公里数
	kmPerDegLon   = 85.0   // 纽约纬度下经度每度近似公里数
)

// HaversineKM 两点间大圆距离(公里)
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlon1 := lon1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	rlon2 := lon2 * math.Pi / 180

	dlat := rlat2 - rlat1
	dlon := rlon2 - rlon1

	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

// ManhattanKM 网格距离近似(公里)
// 固定的度-公里换算系数，只是近似，不是真实路网距离
func ManhattanKM(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Abs(lat1-lat2)*kmPerDegLat + math.Abs(lon1-lon2)*kmPerDegLon
}

// DistanceFromCenterKM 到市中心参考点的平面欧氏距离近似(公里)
// 只用于粗略分桶，不需要测地线精度
func DistanceFromCenterKM(lat, lon, centerLat, centerLon float64) float64 {
	dlat := lat - centerLat
	dlon := lon - centerLon
	return math.Sqrt(dlat*dlat+dlon*dlon) * kmPerDegLat
}

// ClassifyBorough 按优先级顺序在行政区矩形列表中匹配坐标，先匹配先得
// 未命中任何矩形返回 Other，保证分类总是有结果
func ClassifyBorough(boroughs []config.BoroughBox, lat, lon float64) string {
	for _, b := range boroughs {
		if b.Box.Contains(lat, lon) {
			return b.Name
		}
	}
	return "Other"
}
