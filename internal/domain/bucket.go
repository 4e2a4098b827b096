package domain

// Bucket 一次发现扫描中构建的临时价格桶快照（不落盘）
type Bucket struct {
	Ticker     string   // 市场 ticker
	Title      string   // 展示标题，例如 "49° to 50°"
	Floor      *int     // 区间下界（含），nil 表示 "X or below"
	Cap        *int     // 区间上界（不含），nil 表示 "X or above"
	YesBid     int      // yes 方向最优买价（分）
	YesAsk     int      // yes 方向最优卖价（分）
	MakerPrice int      // 计算出的做市价（分）
	Midpoint   float64  // 温度中点，用于排序
}

// Contains 判断温度是否落在本桶区间内（[floor, cap)，开边界按单侧判断）
func (b *Bucket) Contains(temp float64) bool {
	switch {
	case b.Floor != nil && b.Cap != nil:
		return float64(*b.Floor) <= temp && temp < float64(*b.Cap)
	case b.Floor == nil && b.Cap != nil:
		return temp < float64(*b.Cap)
	case b.Cap == nil && b.Floor != nil:
		return temp >= float64(*b.Floor)
	}
	return false
}

// BucketMidpoint 计算桶的温度中点；开边界的桶取边界外半度的合成中点
func BucketMidpoint(floor, cap *int) (float64, bool) {
	switch {
	case floor != nil && cap != nil:
		return (float64(*floor) + float64(*cap)) / 2, true
	case floor == nil && cap != nil:
		return float64(*cap) - 0.5, true
	case cap == nil && floor != nil:
		return float64(*floor) + 0.5, true
	}
	return 0, false
}
