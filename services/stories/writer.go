package stories

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"casevault-backend/lib/scrapers/customerstories"
)

// DatasetFilename is the fixed output name; a new run overwrites the
// previous dataset in place.
const DatasetFilename = "customer_stories.json"

// BuildDataset assembles run metadata from the accumulated records and
// the pages actually visited. Pure aside from reading the clock.
func BuildDataset(seedUrl string, pagesVisited int, storiesPerPage map[int]int, records []customerstories.StoryRecord) customerstories.Dataset {
	return customerstories.Dataset{
		Metadata: customerstories.RunMetadata{
			TotalPages:     pagesVisited,
			TotalStories:   len(records),
			ExtractionDate: time.Now().UTC().Format(time.RFC3339),
			BaseUrl:        seedUrl,
			StoriesPerPage: storiesPerPage,
		},
		Stories: records,
	}
}

// WriteDataset serializes the dataset as a single complete file write.
func WriteDataset(path string, dataset *customerstories.Dataset) error {
	serialized, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing dataset: %w", err)
	}
	err = os.WriteFile(path, serialized, 0644)
	if err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	return nil
}

func ReadDataset(path string) (*customerstories.Dataset, error) {
	serialized, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dataset customerstories.Dataset
	err = json.Unmarshal(serialized, &dataset)
	if err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	return &dataset, nil
}
