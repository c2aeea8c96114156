package model

// linkKey scopes a link token by course number. Tokens are reused across
// unrelated courses and must never be matched on the token alone.
type linkKey struct {
	courseNumber string
	token        string
}

// GroupSections reconstructs classes from a flat (term, subject) section
// list. Sections carrying no link tokens each form their own group. Linked
// sections are indexed by (courseNumber, linkSelf) and collected with a
// breadth-first traversal over their token chains: pulling a key yields all
// sections registered under it and enqueues each one's other token. Keys
// are consumed as they are visited; whatever remains seeds the next group.
func GroupSections(sections []Section) [][]Section {
	var groups [][]Section

	index := map[linkKey][]Section{}
	var seeds []linkKey

	for _, s := range sections {
		if s.LinkSelf == "" && s.LinkOther == "" {
			groups = append(groups, []Section{s})
			continue
		}

		key := linkKey{s.CourseNumber, s.LinkSelf}
		if _, ok := index[key]; !ok {
			seeds = append(seeds, key)
		}
		index[key] = append(index[key], s)
	}

	for _, seed := range seeds {
		if _, ok := index[seed]; !ok {
			continue
		}

		var group []Section
		queue := []linkKey{seed}
		visited := map[linkKey]bool{seed: true}

		for len(queue) > 0 {
			key := queue[0]
			queue = queue[1:]

			for _, s := range index[key] {
				group = append(group, s)

				other := linkKey{s.CourseNumber, s.LinkOther}
				if s.LinkOther != "" && !visited[other] {
					visited[other] = true
					queue = append(queue, other)
				}
			}

			delete(index, key)
		}

		if len(group) > 0 {
			groups = append(groups, group)
		}
	}

	return groups
}
