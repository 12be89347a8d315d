package domain

import "fmt"

// Rank 牌面符号（A、2-9、10、J、Q、K）
type Rank string

// Ranks 固定顺序的全部牌面，一副牌每种 4 张
var Ranks = []Rank{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// pointValues 百家乐点数：A=1，2-9 按面值，10/J/Q/K=0
var pointValues = map[Rank]int{
	"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9,
	"10": 0, "J": 0, "Q": 0, "K": 0,
}

// Valid 校验牌面符号是否合法
func (r Rank) Valid() bool {
	_, ok := pointValues[r]
	return ok
}

// Points 返回百家乐点数
func (r Rank) Points() int { return pointValues[r] }

// CardCounts 按牌面统计的已见牌数量（用于构造剩余牌池）
type CardCounts map[Rank]int

// Validate 校验计数：只允许合法牌面且数量非负
func (c CardCounts) Validate() error {
	for rank, n := range c {
		if !rank.Valid() {
			return fmt.Errorf("invalid card rank: %q", rank)
		}
		if n < 0 {
			return fmt.Errorf("negative count for rank %s: %d", rank, n)
		}
	}
	return nil
}

// Total 已见牌总数
func (c CardCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
