package detect

import "runtime"

// COCOClasses is the detection vocabulary of the bundled SSD model. Index 0 is
// the background class and never appears in decoded detections.
var COCOClasses = []string{
	"__background__", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep",
	"cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase",
	"frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich",
	"orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
	"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// ClassName returns the class name for a given class ID.
func ClassName(classID int) string {
	if classID >= 0 && classID < len(COCOClasses) {
		return COCOClasses[classID]
	}
	return ""
}

// ClassMapping returns a mapping of class names to their IDs.
func ClassMapping() map[string]int {
	mapping := make(map[string]int, len(COCOClasses))
	for i, className := range COCOClasses {
		mapping[className] = i
	}
	return mapping
}

// defaultSharedLibPath returns the platform-specific onnxruntime shared
// library shipped under third_party/.
func defaultSharedLibPath() string {
	if runtime.GOOS == "windows" {
		return "third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.dylib"
		}
		return "third_party/onnxruntime_amd64.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "third_party/onnxruntime_arm64.so"
	}
	return "third_party/onnxruntime.so"
}
