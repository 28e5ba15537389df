package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
)

// monsterState принадлежит только симулятору и живет от спавна до смерти или выхода.
type monsterState struct {
	id        domain.ObjectID
	cfg       gameconfig.MonsterConfig
	pos       domain.FpCellPos
	health    float64
	path      []domain.CellPos // сжатый путь
	pathIdx   int              // точка пути, к которой монстр идет сейчас
	spawnedAt float64

	lastPathTime float64 // время прохождения path[pathIdx-1]
	nextPathTime float64 // время прибытия в path[pathIdx]
	completed    float64 // длина полностью пройденных отрезков
	distTraveled float64

	finished bool // дошел до выхода
	dead     bool
}

type towerState struct {
	id        int
	cfg       gameconfig.TowerConfig
	pos       domain.FpCellPos
	lastFired float64
}

// battleState - изменяемое состояние одного расчета.
type battleState struct {
	tickSecs  float64
	precision int
	enter     domain.FpCellPos

	queue []gameconfig.MonsterConfig // еще не выпущенные монстры, по порядку
	paths [][]domain.CellPos         // paths[i] для queue[i]
	next  int                        // индекс следующего в очереди

	live   []*monsterState
	towers []*towerState

	events   []domain.Event
	defeated domain.MonstersDefeated
	nextID   domain.ObjectID
	gameTime float64
}

func (b *battleState) emit(e domain.Event) {
	b.events = append(b.events, e)
}

func (b *battleState) done() bool {
	return b.next >= len(b.queue) && len(b.live) == 0
}

// spawnOpen - вход свободен, если ни один живой монстр не стоит на нем даже частично.
func (b *battleState) spawnOpen() bool {
	if b.next >= len(b.queue) {
		return false
	}
	for _, m := range b.live {
		if math.Abs(m.pos.Row-b.enter.Row) < 1 && math.Abs(m.pos.Col-b.enter.Col) < 1 {
			return false
		}
	}
	return true
}

func (b *battleState) spawn() {
	cfg := b.queue[b.next]
	path := b.paths[b.next]
	b.next++

	m := &monsterState{
		id:           b.nextID,
		cfg:          cfg,
		pos:          path[0].Fp(),
		health:       cfg.Health,
		path:         path,
		spawnedAt:    b.gameTime,
		lastPathTime: b.gameTime,
		nextPathTime: b.gameTime,
	}
	b.nextID++
	b.live = append(b.live, m)

	c := b.defeated[cfg.ID]
	c.Sent++
	b.defeated[cfg.ID] = c
}

// moveMonsters переводит монстров на следующие отрезки пути.
// На каждый отрезок выпускается ровно одно событие Move с аналитическим временем.
func (b *battleState) moveMonsters() error {
	for _, m := range b.live {
		for m.nextPathTime <= b.gameTime {
			if m.pathIdx > 0 {
				m.completed += m.path[m.pathIdx-1].Fp().Dist(m.path[m.pathIdx].Fp())
			}

			if m.pathIdx == len(m.path)-1 {
				b.emit(domain.DeleteEvent{
					ObjKind:   domain.ObjectMonster,
					ID:        m.id,
					StartTime: m.nextPathTime,
				})
				m.finished = true
				m.pos = m.path[m.pathIdx].Fp()
				break
			}

			from, to := m.path[m.pathIdx], m.path[m.pathIdx+1]
			if from.Row != to.Row && from.Col != to.Col {
				return fmt.Errorf("%w: monster %d from %s to %s", ErrMisaligned, m.id, from, to)
			}
			segTime := from.Fp().Dist(to.Fp()) / m.cfg.Speed
			b.emit(domain.MoveEvent{
				ObjKind:   domain.ObjectMonster,
				ID:        m.id,
				ConfigID:  m.cfg.ID,
				StartPos:  from.Fp(),
				DestPos:   to.Fp(),
				StartTime: m.nextPathTime,
				EndTime:   m.nextPathTime + segTime,
			})

			m.pathIdx++
			m.lastPathTime = m.nextPathTime
			m.nextPathTime += segTime
		}
		if m.finished {
			continue
		}

		// Позиция между точками пути.
		from := m.path[m.pathIdx-1].Fp()
		to := m.path[m.pathIdx].Fp()
		frac := 1.0
		if span := m.nextPathTime - m.lastPathTime; span > 0 {
			frac = (b.gameTime - m.lastPathTime) / span
		}
		pos, err := from.Interpolate(to, math.Min(math.Max(frac, 0), 1))
		if err != nil {
			return fmt.Errorf("monster %d: %w", m.id, err)
		}
		m.pos = pos
		m.distTraveled = m.completed + from.Dist(pos)
	}
	return nil
}

// targetOrder - живые монстры по убыванию пройденного пути, при равенстве по возрастанию ID.
func (b *battleState) targetOrder() []*monsterState {
	order := make([]*monsterState, 0, len(b.live))
	for _, m := range b.live {
		if !m.finished && !m.dead {
			order = append(order, m)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].distTraveled != order[j].distTraveled {
			return order[i].distTraveled > order[j].distTraveled
		}
		return order[i].id < order[j].id
	})
	return order
}

// firingRadius - насколько далеко мог бы улететь снаряд, выпущенный сразу после перезарядки.
func (t *towerState) firingRadius(gameTime float64) float64 {
	if t.cfg.FiringRate <= 0 {
		return 0
	}
	sinceReady := gameTime - (t.lastFired + 1/t.cfg.FiringRate)
	return math.Max(0, math.Min(t.cfg.Range, sinceReady*t.cfg.ProjectileSpeed))
}

// selectTarget берет первого достижимого монстра в порядке targetOrder,
// пропуская тех, в кого пришлось бы стрелять раньше их появления.
func selectTarget(t *towerState, order []*monsterState, radius, gameTime float64) (*monsterState, float64) {
	radiusSq := radius * radius
	for _, m := range order {
		if m.dead {
			continue
		}
		distSq := m.pos.DistSq(t.pos)
		if distSq > radiusSq {
			continue
		}
		dist := math.Sqrt(distSq)
		if gameTime-dist/t.cfg.ProjectileSpeed < m.spawnedAt {
			continue
		}
		return m, dist
	}
	return nil, 0
}

// fireTowers: выстрел "прилетает" в gameTime, а выпущен в прошлом.
func (b *battleState) fireTowers() error {
	order := b.targetOrder()
	for _, t := range b.towers {
		radius := t.firingRadius(b.gameTime)
		if radius <= 0 {
			continue
		}
		target, dist := selectTarget(t, order, radius, b.gameTime)
		if target == nil {
			continue
		}

		shotDuration := dist / t.cfg.ProjectileSpeed
		// Время выстрела хранится с точностью событий.
		t.lastFired = domain.RoundTo(b.gameTime-shotDuration, b.precision)
		if t.lastFired < 0 {
			return fmt.Errorf("%w: %v (dist %v, duration %v, game time %v)",
				ErrNegativeFireTime, t.lastFired, dist, shotDuration, b.gameTime)
		}

		target.health -= t.cfg.Damage

		projectileID := b.nextID
		b.nextID++
		b.emit(domain.MoveEvent{
			ObjKind:   domain.ObjectProjectile,
			ID:        projectileID,
			ConfigID:  t.cfg.ProjectileID,
			StartPos:  t.pos,
			DestPos:   target.pos,
			StartTime: t.lastFired,
			EndTime:   b.gameTime,
		})
		b.emit(domain.DeleteEvent{
			ObjKind:   domain.ObjectProjectile,
			ID:        projectileID,
			StartTime: b.gameTime,
		})
		b.emit(domain.DamageEvent{
			ID:        target.id,
			StartTime: b.gameTime,
			Health:    target.health,
		})

		if target.health <= 0 {
			target.dead = true
			b.emit(domain.DeleteEvent{
				ObjKind:   domain.ObjectMonster,
				ID:        target.id,
				StartTime: b.gameTime,
			})
			c := b.defeated[target.cfg.ID]
			c.Defeated++
			b.defeated[target.cfg.ID] = c
		}
	}
	return nil
}

// cleanup убирает дошедших до выхода и убитых, сохраняя порядок остальных.
func (b *battleState) cleanup() {
	alive := b.live[:0]
	for _, m := range b.live {
		if !m.finished && !m.dead {
			alive = append(alive, m)
		}
	}
	for i := len(alive); i < len(b.live); i++ {
		b.live[i] = nil
	}
	b.live = alive
}
