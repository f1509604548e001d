// Package gazetteer resolves named birth locations to coordinates for the
// solar-time normalization step.
package gazetteer

import "strings"

// City is a named location with coordinates.
type City struct {
	Name      string
	Province  string
	Longitude float64
	Latitude  float64
}

var cities = []City{
	{Name: "北京", Province: "北京", Longitude: 116.4074, Latitude: 39.9042},
	{Name: "上海", Province: "上海", Longitude: 121.4737, Latitude: 31.2304},
	{Name: "天津", Province: "天津", Longitude: 117.1901, Latitude: 39.1255},
	{Name: "重庆", Province: "重庆", Longitude: 106.5516, Latitude: 29.5630},
	{Name: "广州", Province: "广东", Longitude: 113.2644, Latitude: 23.1291},
	{Name: "深圳", Province: "广东", Longitude: 114.0579, Latitude: 22.5431},
	{Name: "珠海", Province: "广东", Longitude: 113.5539, Latitude: 22.2245},
	{Name: "东莞", Province: "广东", Longitude: 113.7463, Latitude: 23.0460},
	{Name: "佛山", Province: "广东", Longitude: 113.1227, Latitude: 23.0288},
	{Name: "南京", Province: "江苏", Longitude: 118.7969, Latitude: 32.0603},
	{Name: "苏州", Province: "江苏", Longitude: 120.5853, Latitude: 31.2994},
	{Name: "无锡", Province: "江苏", Longitude: 120.3119, Latitude: 31.4912},
	{Name: "杭州", Province: "浙江", Longitude: 120.1551, Latitude: 30.2741},
	{Name: "宁波", Province: "浙江", Longitude: 121.5440, Latitude: 29.8683},
	{Name: "温州", Province: "浙江", Longitude: 120.6993, Latitude: 28.0016},
	{Name: "济南", Province: "山东", Longitude: 117.1205, Latitude: 36.6510},
	{Name: "青岛", Province: "山东", Longitude: 120.3826, Latitude: 36.0671},
	{Name: "武汉", Province: "湖北", Longitude: 114.3054, Latitude: 30.5928},
	{Name: "长沙", Province: "湖南", Longitude: 112.9388, Latitude: 28.2282},
	{Name: "郑州", Province: "河南", Longitude: 113.6254, Latitude: 34.7466},
	{Name: "西安", Province: "陕西", Longitude: 108.9398, Latitude: 34.3416},
	{Name: "成都", Province: "四川", Longitude: 104.0665, Latitude: 30.5723},
	{Name: "昆明", Province: "云南", Longitude: 102.8329, Latitude: 24.8801},
	{Name: "贵阳", Province: "贵州", Longitude: 106.6302, Latitude: 26.6477},
	{Name: "南宁", Province: "广西", Longitude: 108.3661, Latitude: 22.8172},
	{Name: "福州", Province: "福建", Longitude: 119.2965, Latitude: 26.0745},
	{Name: "厦门", Province: "福建", Longitude: 118.0894, Latitude: 24.4798},
	{Name: "南昌", Province: "江西", Longitude: 115.8581, Latitude: 28.6832},
	{Name: "合肥", Province: "安徽", Longitude: 117.2272, Latitude: 31.8206},
	{Name: "石家庄", Province: "河北", Longitude: 114.5149, Latitude: 38.0428},
	{Name: "太原", Province: "山西", Longitude: 112.5489, Latitude: 37.8706},
	{Name: "沈阳", Province: "辽宁", Longitude: 123.4315, Latitude: 41.8057},
	{Name: "大连", Province: "辽宁", Longitude: 121.6147, Latitude: 38.9140},
	{Name: "长春", Province: "吉林", Longitude: 125.3245, Latitude: 43.8868},
	{Name: "哈尔滨", Province: "黑龙江", Longitude: 126.5350, Latitude: 45.8038},
	{Name: "兰州", Province: "甘肃", Longitude: 103.8343, Latitude: 36.0611},
	{Name: "西宁", Province: "青海", Longitude: 101.7782, Latitude: 36.6171},
	{Name: "银川", Province: "宁夏", Longitude: 106.2309, Latitude: 38.4872},
	{Name: "乌鲁木齐", Province: "新疆", Longitude: 87.6168, Latitude: 43.8256},
	{Name: "拉萨", Province: "西藏", Longitude: 91.1145, Latitude: 29.6444},
	{Name: "呼和浩特", Province: "内蒙古", Longitude: 111.7492, Latitude: 40.8424},
	{Name: "海口", Province: "海南", Longitude: 110.1999, Latitude: 20.0444},
	{Name: "香港", Province: "香港", Longitude: 114.1694, Latitude: 22.3193},
	{Name: "澳门", Province: "澳门", Longitude: 113.5491, Latitude: 22.1987},
	{Name: "台北", Province: "台湾", Longitude: 121.5654, Latitude: 25.0330},
}

var byName = func() map[string]City {
	m := make(map[string]City, len(cities))
	for _, c := range cities {
		m[c.Name] = c
	}
	return m
}()

// Lookup resolves a city name to its coordinates. Common suffixes like 市 are
// stripped before matching.
func Lookup(name string) (City, bool) {
	trimmed := strings.TrimSpace(name)
	trimmed = strings.TrimSuffix(trimmed, "市")
	c, ok := byName[trimmed]
	return c, ok
}
