package simulator

import (
	"math/rand"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

// minHandCards 完整发完一手牌（含第三张）最多需要 6 张
const minHandCards = 6

// shoe 一次模拟专用的剩余牌序列（只存点数）。
// 归单个模拟 goroutine 独占，跑完即弃，不存在共享可变状态。
type shoe struct {
	cards []int
	pos   int
}

// buildShoe 从"总牌数 - 已见牌数"构造剩余牌池并做均匀洗牌。
// 已见计数超过牌池上限的牌面按 0 处理（采集误差兜底）。
func buildShoe(observed domain.CardCounts, decks int, rng *rand.Rand) *shoe {
	perRank := decks * 4
	cards := make([]int, 0, decks*52)
	for _, rank := range domain.Ranks {
		remaining := perRank - observed[rank]
		if remaining <= 0 {
			continue
		}
		points := rank.Points()
		for i := 0; i < remaining; i++ {
			cards = append(cards, points)
		}
	}
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return &shoe{cards: cards}
}

// remaining 剩余未发牌数
func (s *shoe) remaining() int { return len(s.cards) - s.pos }

// draw 发一张牌（调用方须先检查 remaining）
func (s *shoe) draw() int {
	c := s.cards[s.pos]
	s.pos++
	return c
}

// handResult 一手牌的结果
type handResult struct {
	winner      domain.Outcome
	bankerScore int
	playerScore int
}

// dealHand 按标准百家乐规则发一手牌。
// 剩余不足 6 张时该手以默认结果（Banker）吸收，不中断整批模拟。
func dealHand(s *shoe) handResult {
	if s.remaining() < minHandCards {
		return handResult{winner: domain.OutcomeBanker}
	}

	banker := s.draw() + s.draw()
	player := s.draw() + s.draw()
	bankerScore := banker % 10
	playerScore := player % 10

	// 天牌（8/9）直接开牌，双方都不补牌
	if bankerScore >= 8 || playerScore >= 8 {
		return handResult{winner: winnerOf(bankerScore, playerScore), bankerScore: bankerScore, playerScore: playerScore}
	}

	if playerScore <= 5 {
		playerThird := s.draw()
		playerScore = (playerScore + playerThird) % 10
		if bankerShouldDraw(bankerScore, playerThird) {
			bankerScore = (bankerScore + s.draw()) % 10
		}
	} else if bankerScore <= 5 {
		bankerScore = (bankerScore + s.draw()) % 10
	}

	return handResult{winner: winnerOf(bankerScore, playerScore), bankerScore: bankerScore, playerScore: playerScore}
}

func winnerOf(bankerScore, playerScore int) domain.Outcome {
	switch {
	case bankerScore > playerScore:
		return domain.OutcomeBanker
	case playerScore > bankerScore:
		return domain.OutcomePlayer
	default:
		return domain.OutcomeTie
	}
}

// bankerShouldDraw 庄家第三张牌规则表（闲家已补牌时，按闲家第三张点数决定）
func bankerShouldDraw(bankerScore, playerThird int) bool {
	switch {
	case bankerScore <= 2:
		return true
	case bankerScore == 3:
		return playerThird != 8
	case bankerScore == 4:
		return playerThird >= 2 && playerThird <= 7
	case bankerScore == 5:
		return playerThird >= 4 && playerThird <= 7
	case bankerScore == 6:
		return playerThird == 6 || playerThird == 7
	default:
		return false
	}
}
