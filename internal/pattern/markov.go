package pattern

import (
	"math"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

// MarkovResult 马尔可夫转移分析结果
type MarkovResult struct {
	Sufficient bool
	// Transition 行归一化的 3×3 转移矩阵，行/列顺序为 B, P, T
	Transition [3][3]float64
	// Stationary 平稳分布（特征值 1 对应的特征向量，幂迭代求得）
	Stationary domain.Distribution
	// Ergodic 各态历经标志：矩阵 10 次幂的所有分量均为正
	Ergodic bool
}

// MarkovTransitionMatrix 从结果序列估计经验转移矩阵及其平稳分布。
func MarkovTransitionMatrix(history []domain.Outcome) (MarkovResult, error) {
	if err := validate(history); err != nil {
		return MarkovResult{}, err
	}
	if len(history) < MinMarkovSamples {
		return MarkovResult{}, nil
	}

	var counts [3][3]float64
	for i := 0; i+1 < len(history); i++ {
		counts[history[i].Index()][history[i+1].Index()]++
	}

	var tm [3][3]float64
	for r := 0; r < 3; r++ {
		var rowSum float64
		for c := 0; c < 3; c++ {
			rowSum += counts[r][c]
		}
		if rowSum == 0 {
			// 该状态从未出现：按自持处理，保持行随机性
			tm[r][r] = 1
			continue
		}
		for c := 0; c < 3; c++ {
			tm[r][c] = counts[r][c] / rowSum
		}
	}

	return MarkovResult{
		Sufficient: true,
		Transition: tm,
		Stationary: stationaryDistribution(tm),
		Ergodic:    isErgodic(tm),
	}, nil
}

// stationaryDistribution 幂迭代求 πP = π 的不动点。
// 容差 1e-9，最多 200 次迭代；不收敛时返回末次迭代值。
func stationaryDistribution(tm [3][3]float64) domain.Distribution {
	pi := [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	for iter := 0; iter < 200; iter++ {
		var next [3]float64
		for c := 0; c < 3; c++ {
			for r := 0; r < 3; r++ {
				next[c] += pi[r] * tm[r][c]
			}
		}
		// 归一化，抵销浮点漂移
		sum := next[0] + next[1] + next[2]
		if sum > 0 {
			for c := range next {
				next[c] /= sum
			}
		}
		delta := math.Abs(next[0]-pi[0]) + math.Abs(next[1]-pi[1]) + math.Abs(next[2]-pi[2])
		pi = next
		if delta < 1e-9 {
			break
		}
	}
	return domain.Distribution{Banker: pi[0], Player: pi[1], Tie: pi[2]}
}

// isErgodic 检查矩阵 10 次幂是否全部分量为正
func isErgodic(tm [3][3]float64) bool {
	power := tm
	for i := 1; i < 10; i++ {
		power = matMul(power, tm)
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if power[r][c] <= 0 {
				return false
			}
		}
	}
	return true
}

func matMul(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			for k := 0; k < 3; k++ {
				out[r][c] += a[r][k] * b[k][c]
			}
		}
	}
	return out
}
