// Package harness runs scripted editing sessions against an annotation and
// checks the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: regroup_athena
//	description: "Merging Apollo into Athena's group"
//	session: s1                  # fixed session id, for stable change-set ids
//	record_file: ../records/iliad.yaml
//	steps:
//	  - op: add_entity
//	    name: Apollo
//	    start: 20
//	    end: 20
//	    as: apollo               # bind the returned id
//	  - op: group_entities
//	    ids: ["3", $apollo]
//	  - op: remove_mention
//	    id: "99_99"
//	    expect_error: NOT_FOUND
//	graph:
//	  key: source,target
//	  merge: sum
//	assertions:
//	  - type: group_members
//	    id: "2"
//	    ids: ["3", $apollo]
//	  - type: edge
//	    key: "1|2|false"
//	    expect: {weight: 5}
//
// The record may be given inline under record: instead of record_file:.
//
// # Execution
//
// Each scenario runs against a fresh in-memory SQLite store. Every step is
// applied to the local annotation through the Editor, its change-set is
// queued on a syncer that delivers to the store, and the annotation's
// invariants are checked after the step. Once all steps ran the syncer is
// drained and the persisted record must equal the local one and must be
// reproducible by replaying the change-set log.
//
// # Assertion Types
//
//   - count: number of rows of a kind
//   - exists / absent: a row of a kind is present or not
//   - row: persisted row fields (subset match)
//   - group_members: exact membership of a group
//   - ties_of: every tie resolving to an entity
//   - edge_count: number of projected edges
//   - edge: projected edge fields (subset match)
package harness
