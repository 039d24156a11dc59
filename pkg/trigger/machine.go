/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package trigger

// evalContext carries a single evaluation of a trigger tree. Nodes are addressed by their pre order index.
type evalContext struct {
	ev          *Evaluator
	st          *State
	in          Input
	eow         bool
	newElements int64
}

func (c *evalContext) node(n int) *NodeState {
	return &c.st.Nodes[n]
}

func (c *evalContext) finished(n int) bool {
	return c.st.Nodes[n].Finished
}

// sub returns the index of the k-th child of node n.
func (c *evalContext) sub(n, k int) int {
	return c.ev.children[n][k]
}

func (c *evalContext) subs(n int) []int {
	return c.ev.children[n]
}

func (c *evalContext) trigger(n int) Trigger {
	return c.ev.nodes[n]
}

func (c *evalContext) onElement(n int) {
	c.trigger(n).onElement(c, n)
}

func (c *evalContext) shouldFire(n int) bool {
	return c.trigger(n).shouldFire(c, n)
}

func (c *evalContext) onFire(n int) {
	c.trigger(n).onFire(c, n)
}

// reset clears the state of node n and all of its descendants.
func (c *evalContext) reset(n int) {
	for j := n; j < n+c.ev.size[n]; j++ {
		c.st.Nodes[j] = NodeState{}
	}
}

func (c *evalContext) clearAndFinish(n int) {
	c.reset(n)
	c.st.Nodes[n].Finished = true
}

// fireAndRearm fires node n and resets it if the firing finished it.
func (c *evalContext) fireAndRearm(n int) {
	c.onFire(n)
	if c.finished(n) {
		c.reset(n)
	}
}

// parts returns the node indexes of the early and late triggers, -1 when not set.
func (t *AfterWatermarkTrigger) parts(c *evalContext, n int) (early, late int) {
	early, late = -1, -1
	k := 0
	if t.Early != nil {
		early = c.sub(n, k)
		k++
	}
	if t.Late != nil {
		late = c.sub(n, k)
	}
	return early, late
}

func (t *AfterWatermarkTrigger) onElement(c *evalContext, n int) {
	s := c.node(n)
	if s.Finished {
		return
	}
	early, late := t.parts(c, n)
	if !s.EndOfWindow {
		// the on time firing is pending, the elements are part of it
		if c.eow {
			return
		}
		if early >= 0 && !c.finished(early) {
			c.onElement(early)
		}
		return
	}
	if late >= 0 {
		c.onElement(late)
	}
}

func (t *AfterWatermarkTrigger) shouldFire(c *evalContext, n int) bool {
	s := c.node(n)
	if s.Finished {
		return false
	}
	early, late := t.parts(c, n)
	if !s.EndOfWindow {
		if c.eow {
			return true
		}
		return early >= 0 && c.shouldFire(early)
	}
	return late >= 0 && c.shouldFire(late)
}

func (t *AfterWatermarkTrigger) onFire(c *evalContext, n int) {
	s := c.node(n)
	if s.Finished {
		return
	}
	early, late := t.parts(c, n)
	if !s.EndOfWindow {
		if c.eow {
			if early >= 0 {
				c.clearAndFinish(early)
			}
			s.EndOfWindow = true
			if late < 0 {
				s.Finished = true
			}
			return
		}
		if early >= 0 && c.shouldFire(early) {
			c.fireAndRearm(early)
		}
		return
	}
	if late >= 0 && c.shouldFire(late) {
		c.fireAndRearm(late)
	}
}

func (t *AfterCountTrigger) onElement(c *evalContext, n int) {
	s := c.node(n)
	if s.Finished {
		return
	}
	s.Count += c.newElements
}

func (t *AfterCountTrigger) shouldFire(c *evalContext, n int) bool {
	s := c.node(n)
	return !s.Finished && s.Count >= t.Count
}

func (t *AfterCountTrigger) onFire(c *evalContext, n int) {
	if !t.shouldFire(c, n) {
		return
	}
	s := c.node(n)
	s.Finished = true
	s.Count = 0
}

func (t *AfterProcessingTimeTrigger) onElement(c *evalContext, n int) {
	s := c.node(n)
	if s.Finished || c.newElements == 0 || s.Deadline != nil {
		return
	}
	d := t.deadline(c.in.Now).UnixMilli()
	s.Deadline = &d
}

func (t *AfterProcessingTimeTrigger) shouldFire(c *evalContext, n int) bool {
	s := c.node(n)
	if s.Finished {
		return false
	}
	d, ok := s.deadline()
	return ok && !c.in.Now.Before(d)
}

func (t *AfterProcessingTimeTrigger) onFire(c *evalContext, n int) {
	if !t.shouldFire(c, n) {
		return
	}
	c.node(n).Finished = true
}

func (t *RepeatedlyTrigger) onElement(c *evalContext, n int) {
	c.onElement(c.sub(n, 0))
}

func (t *RepeatedlyTrigger) shouldFire(c *evalContext, n int) bool {
	return c.shouldFire(c.sub(n, 0))
}

func (t *RepeatedlyTrigger) onFire(c *evalContext, n int) {
	if !t.shouldFire(c, n) {
		return
	}
	c.fireAndRearm(c.sub(n, 0))
}

func (t *OrFinallyTrigger) onElement(c *evalContext, n int) {
	if c.finished(n) {
		return
	}
	c.onElement(c.sub(n, 0))
	c.onElement(c.sub(n, 1))
}

func (t *OrFinallyTrigger) shouldFire(c *evalContext, n int) bool {
	if c.finished(n) {
		return false
	}
	return c.shouldFire(c.sub(n, 0)) || c.shouldFire(c.sub(n, 1))
}

func (t *OrFinallyTrigger) onFire(c *evalContext, n int) {
	if !t.shouldFire(c, n) {
		return
	}
	main, until := c.sub(n, 0), c.sub(n, 1)
	if c.shouldFire(until) {
		c.onFire(until)
		c.clearAndFinish(n)
		return
	}
	c.onFire(main)
	if c.finished(main) {
		c.clearAndFinish(n)
	}
}

func subTriggersOnElement(c *evalContext, n int) {
	if c.finished(n) {
		return
	}
	for _, sub := range c.subs(n) {
		if !c.finished(sub) {
			c.onElement(sub)
		}
	}
}

func (t *AfterAllTrigger) onElement(c *evalContext, n int) {
	subTriggersOnElement(c, n)
}

func (t *AfterAllTrigger) shouldFire(c *evalContext, n int) bool {
	if c.finished(n) {
		return false
	}
	for _, sub := range c.subs(n) {
		if !c.finished(sub) && !c.shouldFire(sub) {
			return false
		}
	}
	return true
}

func (t *AfterAllTrigger) onFire(c *evalContext, n int) {
	if !t.shouldFire(c, n) {
		return
	}
	unfinished := false
	for _, sub := range c.subs(n) {
		if c.finished(sub) {
			continue
		}
		c.onFire(sub)
		if !c.finished(sub) {
			unfinished = true
		}
	}
	if !unfinished {
		c.clearAndFinish(n)
	}
}

func (t *AfterAnyTrigger) onElement(c *evalContext, n int) {
	subTriggersOnElement(c, n)
}

func (t *AfterAnyTrigger) shouldFire(c *evalContext, n int) bool {
	if c.finished(n) {
		return false
	}
	for _, sub := range c.subs(n) {
		if !c.finished(sub) && c.shouldFire(sub) {
			return true
		}
	}
	return false
}

func (t *AfterAnyTrigger) onFire(c *evalContext, n int) {
	if !t.shouldFire(c, n) {
		return
	}
	for _, sub := range c.subs(n) {
		if !c.finished(sub) && c.shouldFire(sub) {
			c.onFire(sub)
		}
	}
	c.clearAndFinish(n)
}

// current returns the position and node index of the first unfinished sub trigger.
func (t *AfterEachTrigger) current(c *evalContext, n int) (int, int) {
	for k, sub := range c.subs(n) {
		if !c.finished(sub) {
			return k, sub
		}
	}
	return -1, -1
}

func (t *AfterEachTrigger) onElement(c *evalContext, n int) {
	if c.finished(n) {
		return
	}
	if _, cur := t.current(c, n); cur >= 0 {
		c.onElement(cur)
	}
}

func (t *AfterEachTrigger) shouldFire(c *evalContext, n int) bool {
	if c.finished(n) {
		return false
	}
	_, cur := t.current(c, n)
	return cur >= 0 && c.shouldFire(cur)
}

func (t *AfterEachTrigger) onFire(c *evalContext, n int) {
	if !t.shouldFire(c, n) {
		return
	}
	k, cur := t.current(c, n)
	c.onFire(cur)
	if c.finished(cur) && k == len(c.subs(n))-1 {
		c.clearAndFinish(n)
	}
}

func (t *NeverTrigger) onElement(*evalContext, int) {}

func (t *NeverTrigger) shouldFire(*evalContext, int) bool {
	return false
}

func (t *NeverTrigger) onFire(*evalContext, int) {}
