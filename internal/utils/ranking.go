package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity        float64 // 时间重力 (1.2)
	WeightReaction float64 // 1.0
	WeightComment  float64 // 2.0
	WeightShare    float64 // 3.0
	WeightView     float64 // 0.02，浏览量数量级大，权重给得极小
	ScaleFactor    float64 // 放大系数 (100)
}

var DefaultConfig = RankConfig{
	Gravity:        1.2,
	WeightReaction: 1.0,
	WeightComment:  2.0,
	WeightShare:    3.0,
	WeightView:     0.02,
	ScaleFactor:    100.0,
}

// ProjectActivity 参与热度计算的项目计数
type ProjectActivity struct {
	CreatedAt time.Time
	Reactions int64
	Comments  int64
	Shares    int64
	Views     int64
}

// CalculateScore 项目热度：对数平滑的加权互动值除以按天计的时间衰减
func CalculateScore(a ProjectActivity, now time.Time) float64 {
	// 作品集项目更新慢，衰减按天而不是按小时
	days := now.Sub(a.CreatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}

	weightedSum := float64(a.Reactions)*DefaultConfig.WeightReaction +
		float64(a.Comments)*DefaultConfig.WeightComment +
		float64(a.Shares)*DefaultConfig.WeightShare +
		float64(a.Views)*DefaultConfig.WeightView
	if weightedSum < 0 {
		weightedSum = 0
	}

	// log10(sum + 1) -> 确保 sum=0 时结果为 0
	logScore := math.Log10(weightedSum + 1)
	numerator := logScore * DefaultConfig.ScaleFactor
	decay := math.Pow(days+2, DefaultConfig.Gravity)

	return numerator / decay
}
