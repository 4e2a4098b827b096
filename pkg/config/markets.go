package config

// DefaultMarkets 内置的温度市场目录（配置文件未提供 markets 时使用）
// 网格点来自 https://api.weather.gov/points/{lat},{lon}
func DefaultMarkets() []Market {
	return []Market{
		// 最高温市场
		{Series: "KXHIGHAUS", City: "Austin", Type: "high", NWSOffice: "EWX", NWSGridpoint: "156,91"},
		{Series: "KXHIGHNY", City: "New York", Type: "high", NWSOffice: "OKX", NWSGridpoint: "33,35"},
		{Series: "KXHIGHMIA", City: "Miami", Type: "high", NWSOffice: "MFL", NWSGridpoint: "110,50"},
		{Series: "KXHIGHTNOLA", City: "New Orleans", Type: "high", NWSOffice: "LIX", NWSGridpoint: "68,88"},
		{Series: "KXHIGHDEN", City: "Denver", Type: "high", NWSOffice: "BOU", NWSGridpoint: "63,62"},
		{Series: "KXHIGHLAX", City: "Los Angeles", Type: "high", NWSOffice: "LOX", NWSGridpoint: "155,45"},
		{Series: "KXHIGHCHI", City: "Chicago", Type: "high", NWSOffice: "LOT", NWSGridpoint: "76,73"},
		{Series: "KXHIGHPHIL", City: "Philadelphia", Type: "high", NWSOffice: "PHI", NWSGridpoint: "50,76"},
		{Series: "KXHIGHTSEA", City: "Seattle", Type: "high", NWSOffice: "SEW", NWSGridpoint: "125,68"},
		{Series: "KXHIGHTSFO", City: "San Francisco", Type: "high", NWSOffice: "MTR", NWSGridpoint: "85,105"},
		{Series: "KXHIGHTDC", City: "Washington DC", Type: "high", NWSOffice: "LWX", NWSGridpoint: "97,71"},
		{Series: "KXHIGHTLV", City: "Las Vegas", Type: "high", NWSOffice: "VEF", NWSGridpoint: "123,98"},

		// 最低温市场
		{Series: "KXLOWTNYC", City: "New York", Type: "low", NWSOffice: "OKX", NWSGridpoint: "33,35"},
		{Series: "KXLOWTLAX", City: "Los Angeles", Type: "low", NWSOffice: "LOX", NWSGridpoint: "155,45"},
		{Series: "KXLOWTDEN", City: "Denver", Type: "low", NWSOffice: "BOU", NWSGridpoint: "63,62"},
		{Series: "KXLOWTCHI", City: "Chicago", Type: "low", NWSOffice: "LOT", NWSGridpoint: "76,73"},
		{Series: "KXLOWTMIA", City: "Miami", Type: "low", NWSOffice: "MFL", NWSGridpoint: "110,50"},
		{Series: "KXLOWTPHIL", City: "Philadelphia", Type: "low", NWSOffice: "PHI", NWSGridpoint: "50,76"},
		{Series: "KXLOWTAUS", City: "Austin", Type: "low", NWSOffice: "EWX", NWSGridpoint: "156,91"},
	}
}
