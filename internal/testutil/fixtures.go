package testutil

import (
	"github.com/roach88/annotie/internal/record"
)

// SampleJSON is SampleRecord in its persisted JSON form, as the automatic
// annotation pipeline would deliver it.
const SampleJSON = `{
  "entities": {
    "1": {"name": "Zeus", "group_id": "1"},
    "2": {"name": "Jupiter", "group_id": "1"},
    "3": {"name": "Athena", "group_id": "2"},
    "4": {"name": "Hera", "group_id": "3"}
  },
  "groups": {
    "1": {"name": "Zeus"},
    "2": {"name": "Athena"},
    "3": {"name": "Hera"}
  },
  "locations": {
    "0_0": {"start": 0, "end": 0, "entity_id": "1"},
    "5_5": {"start": 5, "end": 5, "entity_id": "3"},
    "9_10": {"start": 9, "end": 10, "entity_id": "4"},
    "12_12": {"start": 12, "end": 12, "entity_id": "2"}
  },
  "ties": {
    "1": {"start": 0, "end": 5, "source_entity": {"location_id": "0_0"}, "target_entity": {"location_id": "5_5"}, "label": "father of", "weight": 2, "directed": false},
    "2": {"start": 9, "end": 12, "source_entity": {"entity_id": "4"}, "target_entity": {"entity_id": "2"}, "label": "married to", "weight": 3, "directed": false},
    "3": {"start": 5, "end": 10, "source_entity": {"location_id": "5_5"}, "target_entity": {"entity_id": "4"}, "label": "fears", "directed": true}
  }
}`

// SampleRecord returns a small annotation:
//
//	group 1 "Zeus"   = {1 Zeus, 2 Jupiter}
//	group 2 "Athena" = {3 Athena}
//	group 3 "Hera"   = {4 Hera}
//
// with one mention per entity and three ties: 1 (location 0_0 - location
// 5_5, undirected, weight 2), 2 (entity 4 - entity 2, undirected, weight 3)
// and 3 (location 5_5 -> entity 4, directed, weight 1).
func SampleRecord() record.Record {
	return record.Record{
		Entities: map[string]record.Entity{
			"1": {Name: "Zeus", GroupID: "1"},
			"2": {Name: "Jupiter", GroupID: "1"},
			"3": {Name: "Athena", GroupID: "2"},
			"4": {Name: "Hera", GroupID: "3"},
		},
		Groups: map[string]record.Group{
			"1": {Name: "Zeus"},
			"2": {Name: "Athena"},
			"3": {Name: "Hera"},
		},
		Locations: map[string]record.Location{
			"0_0":   {Start: 0, End: 0, EntityID: "1"},
			"5_5":   {Start: 5, End: 5, EntityID: "3"},
			"9_10":  {Start: 9, End: 10, EntityID: "4"},
			"12_12": {Start: 12, End: 12, EntityID: "2"},
		},
		Ties: map[string]record.Tie{
			"1": {
				Start: 0, End: 5,
				SourceEntity: record.ByLocation("0_0"),
				TargetEntity: record.ByLocation("5_5"),
				Label:        "father of",
				Weight:       2,
			},
			"2": {
				Start: 9, End: 12,
				SourceEntity: record.ByEntity("4"),
				TargetEntity: record.ByEntity("2"),
				Label:        "married to",
				Weight:       3,
			},
			"3": {
				Start: 5, End: 10,
				SourceEntity: record.ByLocation("5_5"),
				TargetEntity: record.ByEntity("4"),
				Label:        "fears",
				Weight:       1,
				Directed:     true,
			},
		},
	}
}
