package renderbundle

// Merge folds other's geometry into s, re-interning its images so store
// indices stay valid. Feature layers use this to combine each feature's own
// small bundle into one frame-level bundle.
func (s *WorldRenderSet) Merge(other *WorldRenderSet) {
	if other == nil {
		return
	}

	s.bufferSize += len(other.Polygons.Vertices)*sizeofPolyVertex + len(other.Polygons.Indices)*4
	s.Polygons.append(other.Polygons)

	s.bufferSize += len(other.Lines.Vertices)*sizeofPolyVertex + len(other.Lines.Indices)*4
	s.Lines.append(other.Lines)

	s.bufferSize += len(other.ScreenRef.Vertices)*sizeofPolyVertex + len(other.ScreenRef.Indices)*4
	s.ScreenRef.append(other.ScreenRef)

	s.bufferSize += len(other.Points) * sizeofPointInstance
	s.Points = append(s.Points, other.Points...)

	for _, img := range other.Images {
		stored := other.imageStore[img.StoreIndex]
		info := img
		info.StoreIndex = s.addImageToStore(stored)
		s.Images = append(s.Images, info)
	}
}
