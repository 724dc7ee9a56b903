package infer

// Label pairs a class ID with its name. The set is the COCO subset the
// device's YOLOv8 demo applications actually detect.
type Label struct {
	ClassID int
	Name    string
}

var labels = []Label{
	{0, "person"},
	{1, "bicycle"},
	{2, "car"},
	{3, "motorcycle"},
	{5, "bus"},
	{7, "truck"},
	{14, "bird"},
	{15, "cat"},
	{16, "dog"},
	{39, "bottle"},
	{41, "cup"},
	{56, "chair"},
}

// Labels returns the detectable label set.
func Labels() []Label {
	out := make([]Label, len(labels))
	copy(out, labels)
	return out
}
